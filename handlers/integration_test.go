package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"

	"article-cms/helper"
	"article-cms/logger"
	"article-cms/markup"
	"article-cms/models"
	"article-cms/realtime"
	"article-cms/repositories"
	"article-cms/services"
	"article-cms/testutil"
)

type envelope struct {
	Code        int             `json:"code"`
	CodeType    string          `json:"code_type"`
	CodeMessage json.RawMessage `json:"code_message"`
	Data        json.RawMessage `json:"data"`
}

type IntegrationTestSuite struct {
	suite.Suite
	router *gin.Engine
	hub    *realtime.Hub
	collab services.CollaborationService
	token  string
	actor  models.Actor
}

func TestIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}

func (suite *IntegrationTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	repos := repositories.New(testutil.NewTestDB(suite.T()))
	suite.hub = realtime.NewHub(log, 32)
	versioning := services.NewVersioningService(repos, markup.NewHTMLNormalizer(), log)
	suite.collab = services.NewCollaborationService(suite.hub, repos, log)
	authService := services.NewAuthService(repos.Users)
	h := helper.NewHTTPHelper()

	suite.router = NewRouter(RouterConfig{
		ServiceName:   "article-cms-test",
		Logger:        log,
		Auth:          NewAuthHandler(authService, h),
		Articles:      NewArticleHandler(versioning, h),
		Versions:      NewVersionHandler(versioning, suite.collab, log, h),
		Templates:     NewTemplateHandler(versioning, h),
		Pages:         NewPageHandler(versioning, h),
		Collaboration: NewCollaborationHandler(suite.collab, suite.hub, h),
		Admin:         NewAdminHandler(versioning, 2, h),
	})

	suite.registerTestUser(models.RoleAdmin)
}

func (suite *IntegrationTestSuite) registerTestUser(role models.UserRole) {
	res := suite.request(http.MethodPost, "/api/v1/auth/register", models.RegisterRequest{
		Username: "testuser",
		Email:    "test@example.com",
		Password: "password123",
		Role:     role,
	}, nil)
	suite.Require().Equal(http.StatusOK, res.Code)

	var auth models.AuthResponse
	suite.decode(res, &auth)
	suite.token = auth.Token
	suite.actor = models.Actor{ID: auth.User.ID, Email: auth.User.Email, Role: auth.User.Role}
}

func (suite *IntegrationTestSuite) request(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		suite.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if suite.token != "" {
		req.Header.Set("Authorization", "Bearer "+suite.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *IntegrationTestSuite) decode(res *httptest.ResponseRecorder, data interface{}) envelope {
	var env envelope
	suite.Require().NoError(json.Unmarshal(res.Body.Bytes(), &env))
	if data != nil {
		suite.Require().NoError(json.Unmarshal(env.Data, data))
	}
	return env
}

func (suite *IntegrationTestSuite) createArticle(title string) models.ArticleVersion {
	res := suite.request(http.MethodPost, "/api/v1/articles", models.CreateArticleRequest{Title: title}, nil)
	suite.Require().Equal(http.StatusCreated, res.Code, res.Body.String())
	var v models.ArticleVersion
	suite.decode(res, &v)
	return v
}

func (suite *IntegrationTestSuite) TestProtectedRoutesNeedToken() {
	suite.token = ""
	res := suite.request(http.MethodGet, "/api/v1/articles", nil, nil)
	suite.Equal(http.StatusUnauthorized, res.Code)
}

func (suite *IntegrationTestSuite) TestProfile() {
	res := suite.request(http.MethodGet, "/api/v1/profile", nil, nil)
	suite.Equal(http.StatusOK, res.Code)
	var user models.User
	suite.decode(res, &user)
	suite.Equal("test@example.com", user.Email)
}

func (suite *IntegrationTestSuite) TestArticleLifecycle() {
	home := suite.createArticle("Home")
	suite.Equal(models.RootPath, home.UrlPath)
	page := suite.createArticle("About Us")

	published := time.Now().Add(-time.Minute)
	res := suite.request(http.MethodPut, fmt.Sprintf("/api/v1/versions/%s", page.ID), models.SaveArticleRequest{
		Title:     "About Us",
		Content:   "<p>hello</p>",
		Published: &published,
	}, nil)
	suite.Require().Equal(http.StatusOK, res.Code, res.Body.String())
	var saved models.SaveResult
	suite.decode(res, &saved)
	suite.True(saved.Created)
	suite.Equal(2, saved.Version.VersionNumber)

	res = suite.request(http.MethodGet, "/pages/about_us", nil, nil)
	suite.Require().Equal(http.StatusOK, res.Code)
	var served models.PublishedPage
	suite.decode(res, &served)
	suite.Equal(saved.Version.ID, served.ID)

	res = suite.request(http.MethodGet, fmt.Sprintf("/api/v1/articles/%d/versions", page.ArticleNumber), nil, nil)
	suite.Require().Equal(http.StatusOK, res.Code)
	var versions []models.ArticleVersion
	suite.decode(res, &versions)
	suite.Len(versions, 2)

	res = suite.request(http.MethodGet, "/api/v1/articles?limit=1", nil, nil)
	suite.Require().Equal(http.StatusOK, res.Code)
	var catalog struct {
		Articles []models.CatalogEntry `json:"articles"`
		Paging   map[string]interface{} `json:"paging"`
	}
	suite.decode(res, &catalog)
	suite.Len(catalog.Articles, 1)
	suite.EqualValues(2, catalog.Paging["total_records"])

	res = suite.request(http.MethodDelete, fmt.Sprintf("/api/v1/articles/%d", page.ArticleNumber), nil, nil)
	suite.Equal(http.StatusOK, res.Code)
	res = suite.request(http.MethodGet, "/pages/about_us", nil, nil)
	suite.Equal(http.StatusNotFound, res.Code)

	res = suite.request(http.MethodGet, "/api/v1/articles/trash", nil, nil)
	var trashed []models.TrashedArticle
	suite.decode(res, &trashed)
	suite.Len(trashed, 1)

	res = suite.request(http.MethodPost, fmt.Sprintf("/api/v1/articles/%d/restore", page.ArticleNumber), nil, nil)
	suite.Equal(http.StatusOK, res.Code)

	res = suite.request(http.MethodDelete, fmt.Sprintf("/api/v1/articles/%d/purge", page.ArticleNumber), nil, nil)
	suite.Equal(http.StatusOK, res.Code)
	res = suite.request(http.MethodGet, fmt.Sprintf("/api/v1/articles/%d/latest", page.ArticleNumber), nil, nil)
	suite.Equal(http.StatusNotFound, res.Code)
}

func (suite *IntegrationTestSuite) TestDomainErrorsMapToStatus() {
	home := suite.createArticle("Home")

	res := suite.request(http.MethodPost, "/api/v1/articles", models.CreateArticleRequest{Title: "home"}, nil)
	suite.Equal(http.StatusBadRequest, res.Code)

	res = suite.request(http.MethodDelete, fmt.Sprintf("/api/v1/articles/%d", home.ArticleNumber), nil, nil)
	suite.Equal(http.StatusUnprocessableEntity, res.Code)

	res = suite.request(http.MethodGet, "/api/v1/versions/not-a-uuid", nil, nil)
	suite.Equal(http.StatusBadRequest, res.Code)

	res = suite.request(http.MethodPut, fmt.Sprintf("/api/v1/versions/%s", home.ID), map[string]string{}, nil)
	env := suite.decode(res, nil)
	suite.Equal(http.StatusBadRequest, res.Code)
	suite.Equal("validationError", env.CodeType)
}

func (suite *IntegrationTestSuite) TestRenameAnswersWithRedirect() {
	suite.createArticle("Home")
	page := suite.createArticle("Products")

	res := suite.request(http.MethodPut, fmt.Sprintf("/api/v1/versions/%s", page.ID), models.SaveArticleRequest{
		Title:          "Catalog",
		UpdateExisting: true,
	}, nil)
	suite.Require().Equal(http.StatusOK, res.Code, res.Body.String())

	res = suite.request(http.MethodGet, "/pages/products", nil, nil)
	suite.Equal(http.StatusMovedPermanently, res.Code)
	suite.Equal("/pages/catalog", res.Header().Get("Location"))
}

func (suite *IntegrationTestSuite) TestSaveReleasesLockAndNotifiesRoom() {
	suite.createArticle("Home")
	page := suite.createArticle("News")
	room := fmt.Sprint(page.ArticleNumber)

	editor := suite.collab.Connect(suite.actor)
	watcher := suite.collab.Connect(models.Actor{ID: 99, Email: "watcher@example.com"})
	for _, c := range []*realtime.Client{editor, watcher} {
		res := suite.request(http.MethodPost, "/api/v1/collab/rooms/article/"+room+"/join", nil, map[string]string{ConnectionHeader: c.ID})
		suite.Require().Equal(http.StatusOK, res.Code, res.Body.String())
	}
	res := suite.request(http.MethodPost, "/api/v1/collab/rooms/article/"+room+"/lock", nil, map[string]string{ConnectionHeader: editor.ID})
	suite.Require().Equal(http.StatusOK, res.Code)
	var state realtime.LockState
	suite.decode(res, &state)
	suite.True(state.Locked)
	suite.Equal("test@example.com", state.ActorEmail)
	drain(watcher)

	res = suite.request(http.MethodPut, fmt.Sprintf("/api/v1/versions/%s", page.ID), models.SaveArticleRequest{
		Title:   "News",
		Content: "<p>breaking</p>",
	}, map[string]string{ConnectionHeader: editor.ID})
	suite.Require().Equal(http.StatusOK, res.Code)

	var events []realtime.Event
	for _, msg := range drain(watcher) {
		events = append(events, msg.Event)
	}
	suite.Equal([]realtime.Event{realtime.EventLockState, realtime.EventSaved, realtime.EventReload}, events)
}

func (suite *IntegrationTestSuite) TestRoomRequestsNeedConnectionHeader() {
	res := suite.request(http.MethodPost, "/api/v1/collab/rooms/article/1/lock", nil, nil)
	suite.Equal(http.StatusBadRequest, res.Code)

	res = suite.request(http.MethodPost, "/api/v1/collab/rooms/article/1/lock", nil, map[string]string{ConnectionHeader: "gone"})
	suite.Equal(http.StatusNotFound, res.Code)

	res = suite.request(http.MethodPost, "/api/v1/collab/rooms/sheet/1/join", nil, map[string]string{ConnectionHeader: "gone"})
	suite.Equal(http.StatusBadRequest, res.Code)
}

func (suite *IntegrationTestSuite) TestAdminRoutesNeedAdminRole() {
	res := suite.request(http.MethodPost, "/api/v1/admin/projections/rebuild", nil, nil)
	suite.Equal(http.StatusOK, res.Code)

	suite.token = ""
	res = suite.request(http.MethodPost, "/api/v1/auth/register", models.RegisterRequest{
		Username: "writer",
		Email:    "writer@example.com",
		Password: "password123",
	}, nil)
	var auth models.AuthResponse
	suite.decode(res, &auth)
	suite.token = auth.Token

	res = suite.request(http.MethodPost, "/api/v1/admin/projections/rebuild", nil, nil)
	suite.Equal(http.StatusUnauthorized, res.Code)
}

func drain(c *realtime.Client) []realtime.Message {
	var msgs []realtime.Message
	for {
		select {
		case msg := <-c.Outbound:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}
