package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterCareRoutes 注册 CareScore 查询与计算路由
func (r *Router) RegisterCareRoutes(h *CareScoreHandler) {
	r.Handle("/care/api/v1/score/latest", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetLatest(w, req)
	})

	r.Handle("/care/api/v1/score/history", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetHistory(w, req)
	})

	r.Handle("/care/api/v1/score/compute", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Compute(w, req)
	})
}

// RegisterEscalationRoutes 注册升级记录路由
func (r *Router) RegisterEscalationRoutes(h *EscalationHandler) {
	r.Handle("/care/api/v1/escalations", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.List(w, req)
	})

	// escalations/{id}/acknowledge
	r.Handle("/care/api/v1/escalations/", func(w http.ResponseWriter, req *http.Request) {
		path := req.URL.Path
		if strings.HasSuffix(path, "/acknowledge") && req.Method == http.MethodPut {
			escalationID := strings.TrimSuffix(path, "/acknowledge")
			escalationID = strings.TrimPrefix(escalationID, "/care/api/v1/escalations/")
			if escalationID != "" && !strings.Contains(escalationID, "/") {
				h.Acknowledge(w, req, escalationID)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	})
}

// RegisterReadingRoutes 注册读数接入路由
func (r *Router) RegisterReadingRoutes(h *ReadingsHandler) {
	r.Handle("/care/api/v1/readings", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Ingest(w, req)
	})

	r.Handle("/care/api/v1/manual", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.SubmitManual(w, req)
	})
}

// RegisterExportRoutes 注册导出路由
func (r *Router) RegisterExportRoutes(h *ExportHandler) {
	r.Handle("/care/api/v1/export/scores", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ExportScores(w, req)
	})
}

// RegisterHealthRoutes 注册健康检查路由
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
