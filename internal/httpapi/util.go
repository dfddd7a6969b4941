package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError 把领域错误映射为 HTTP 状态码
// 校验 400 / 不存在 404 / 状态机冲突 409 / 依赖不可用 503 / 其它 500
func writeError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	var tErr *domain.InvalidTransitionError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: vErr.Message})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "incident not found"})
	case errors.As(err, &tErr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: tErr.Error()})
	case errors.Is(err, domain.ErrDependencyUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "dependency unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
