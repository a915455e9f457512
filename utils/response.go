package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func JSON200(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"status": http.StatusOK,
		"data":   data,
	})
}

func JSON202(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, gin.H{
		"status": http.StatusAccepted,
		"data":   data,
	})
}

func JSON400(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"status": http.StatusBadRequest,
		"error":  message,
	})
}

func JSON401(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"status": http.StatusUnauthorized,
		"error":  message,
	})
}

func JSON403(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, gin.H{
		"status": http.StatusForbidden,
		"error":  message,
	})
}

func JSON404(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, gin.H{
		"status": http.StatusNotFound,
		"error":  message,
	})
}

func JSON409(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, gin.H{
		"status": http.StatusConflict,
		"error":  message,
	})
}

func JSON500(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"status": http.StatusInternalServerError,
		"error":  message,
	})
}
