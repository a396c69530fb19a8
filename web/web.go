package web

import (
	"embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed static/index.html
var files embed.FS

// IndexHTML 首页内容
func IndexHTML() []byte {
	data, err := files.ReadFile("static/index.html")
	if err != nil {
		panic(err)
	}
	return data
}

// Index 返回内嵌的首页
func Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", IndexHTML())
}
