package models

const ArticleNumberCounter = "article_number"

// ArticleCounter is a named monotonic counter. ArticleNumbers are allocated from
// the row named ArticleNumberCounter.
type ArticleCounter struct {
	Name  string `gorm:"primaryKey"`
	Value int    `gorm:"not null;default:0"`
}
