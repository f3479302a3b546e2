// controller/item_controller_test.go
package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cordon-dev/cordon/controller"
	cordon_errors "github.com/cordon-dev/cordon/errors"
	logger "github.com/cordon-dev/cordon/logging"
	"github.com/cordon-dev/cordon/model"
	"github.com/cordon-dev/cordon/service"
	"github.com/cordon-dev/cordon/util"
)

// stubItemService returns canned results so the HTTP mapping can be tested
// in isolation.
type stubItemService struct {
	addID    string
	addErr   error
	item     *model.Item
	getErr   error
	delErr   error
	lastIctx *model.Context
}

var _ service.IItemService = &stubItemService{}

func (s *stubItemService) AddItem(ctx context.Context, ictx *model.Context, req *model.ItemAddReq) (string, error) {
	s.lastIctx = ictx
	return s.addID, s.addErr
}

func (s *stubItemService) ModifyItem(ctx context.Context, ictx *model.Context, id string, req *model.ItemModifyReq) (*model.Item, error) {
	return s.item, s.getErr
}

func (s *stubItemService) DeleteItem(ctx context.Context, ictx *model.Context, id string) error {
	return s.delErr
}

func (s *stubItemService) GetItem(ctx context.Context, ictx *model.Context, id string) (*model.Item, error) {
	return s.item, s.getErr
}

func (s *stubItemService) FindItems(ctx context.Context, ictx *model.Context, filter *model.ItemFilter) ([]*model.Item, error) {
	if s.item == nil {
		return nil, nil
	}
	return []*model.Item{s.item}, nil
}

func (s *stubItemService) PaginateItems(ctx context.Context, ictx *model.Context, filter *model.ItemFilter, pageNumber, pageSize int) (*model.ItemPage, error) {
	return &model.ItemPage{PageNumber: pageNumber, PageSize: pageSize}, nil
}

// identityStub plants a fixed identity, standing in for the token
// middleware.
func identityStub(ictx *model.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		util.SetIdentity(c, ictx)
		c.Next()
	}
}

func setupItemRouter(svc service.IItemService, ictx *model.Context) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/")
	if ictx != nil {
		api.Use(identityStub(ictx))
	}
	controller.NewItemController(svc).RegisterRoutes(api)
	return r
}

func TestItemController(t *testing.T) {
	logger.InitLogger(t.TempDir())
	defer logger.Sync()

	ictx := &model.Context{OwnPaths: "t1", Owner: "admin"}

	t.Run("CreateItem_Success", func(t *testing.T) {
		svc := &stubItemService{addID: "item-1"}
		router := setupItemRouter(svc, ictx)

		body := strings.NewReader(`{"kind":"role","code":"ops","name":"Ops","scope_level":1}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/items", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "item-1", resp["id"])
		require.NotNil(t, svc.lastIctx)
		assert.Equal(t, "t1", svc.lastIctx.OwnPaths)
	})

	t.Run("CreateItem_Conflict", func(t *testing.T) {
		svc := &stubItemService{addErr: cordon_errors.ErrItemConflict}
		router := setupItemRouter(svc, ictx)

		body := strings.NewReader(`{"kind":"role","code":"ops","name":"Ops"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/items", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("CreateItem_MissingIdentity", func(t *testing.T) {
		svc := &stubItemService{addID: "item-1"}
		router := setupItemRouter(svc, nil)

		body := strings.NewReader(`{"kind":"role","name":"Ops"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/items", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("GetItem_NotFound", func(t *testing.T) {
		svc := &stubItemService{getErr: cordon_errors.ErrItemNotFound}
		router := setupItemRouter(svc, ictx)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/items/missing", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GetItem_NotVisible", func(t *testing.T) {
		svc := &stubItemService{getErr: cordon_errors.ErrItemNotVisible}
		router := setupItemRouter(svc, ictx)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/items/foreign", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("DeleteItem_Attached", func(t *testing.T) {
		svc := &stubItemService{delErr: cordon_errors.ErrItemAttached}
		router := setupItemRouter(svc, ictx)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/items/role-1", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("DeleteItem_Success", func(t *testing.T) {
		svc := &stubItemService{}
		router := setupItemRouter(svc, ictx)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("DELETE", "/items/role-1", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("ListItems_Success", func(t *testing.T) {
		svc := &stubItemService{}
		router := setupItemRouter(svc, ictx)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/items?kind=role&page_number=2&page_size=5", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var page model.ItemPage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.Equal(t, 2, page.PageNumber)
		assert.Equal(t, 5, page.PageSize)
	})
}
