package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"article-cms/models"
)

func articleNumberParam(c *gin.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil || n < 1 {
		return 0, models.ErrorValidation{Field: "number", Message: "invalid article number"}
	}
	return n, nil
}

func versionIDParam(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, models.ErrorValidation{Field: "id", Message: "invalid version id"}
	}
	return id, nil
}
