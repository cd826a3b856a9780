package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"family-taxi/internal/services"

	"github.com/gin-gonic/gin"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err     error
		code    int
		message string
	}{
		{services.ErrNotAuthenticated, http.StatusUnauthorized, services.ErrNotAuthenticated.Error()},
		{fmt.Errorf("%w: чужая поездка", services.ErrNotAuthorized), http.StatusForbidden, "недостаточно прав: чужая поездка"},
		{fmt.Errorf("%w: поездка 3", services.ErrNotFound), http.StatusNotFound, "не найдено: поездка 3"},
		{fmt.Errorf("%w: уже принята", services.ErrPreconditionFailed), http.StatusConflict, "операция недоступна в текущем состоянии: уже принята"},
		{fmt.Errorf("%w: оценка", services.ErrValidation), http.StatusBadRequest, "некорректные данные: оценка"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, tt.err)

		if w.Code != tt.code {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["error"] != tt.message {
			t.Errorf("%v: message = %q, want %q", tt.err, body["error"], tt.message)
		}
		if len(c.Errors) != 1 {
			t.Errorf("%v: error not recorded in context", tt.err)
		}
	}
}

func TestIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, tc := range []struct {
		raw  string
		ok   bool
		want uint
	}{{"12", true, 12}, {"0", false, 0}, {"abc", false, 0}, {"-1", false, 0}} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: tc.raw}}

		id, ok := idParam(c)
		if ok != tc.ok || id != tc.want {
			t.Errorf("idParam(%q) = %d, %v", tc.raw, id, ok)
		}
		if !ok && w.Code != http.StatusBadRequest {
			t.Errorf("idParam(%q): status = %d, want 400", tc.raw, w.Code)
		}
	}
}
