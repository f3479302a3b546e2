package helper_util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetPageParams(c *gin.Context) (pageNumber int, pageSize int, err error) {
	pageNumber, err = strconv.Atoi(c.DefaultQuery("page_number", "1"))
	if err != nil {
		return 0, 0, err
	}
	pageSize, err = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil {
		return 0, 0, err
	}
	return pageNumber, pageSize, nil
}
