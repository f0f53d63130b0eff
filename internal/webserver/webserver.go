package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/Heisenberg1912/filecoin/internal/deals"
	"github.com/Heisenberg1912/filecoin/internal/gateway"
	"github.com/Heisenberg1912/filecoin/internal/models"
	"github.com/Heisenberg1912/filecoin/internal/proofs"
	"github.com/Heisenberg1912/filecoin/internal/store"
	"github.com/Heisenberg1912/filecoin/internal/webhooks"
)

// maxUploadBytes caps multipart uploads at 32 MiB.
const maxUploadBytes = 32 << 20

// WebServer holds the data needed for handling HTTP requests.
type WebServer struct {
	Certifier  *proofs.Certifier
	Gateways   *gateway.Monitor
	Tracker    *deals.Tracker
	Database   store.Database
	config     *WebserverConfig
	middleware *Middleware
	Logger     *logrus.Logger
}

// NewWebServer initializes a new WebServer.
func NewWebServer(certifier *proofs.Certifier, gateways *gateway.Monitor, tracker *deals.Tracker, db store.Database, config *WebserverConfig, logger *logrus.Logger) *WebServer {
	return &WebServer{
		Certifier:  certifier,
		Gateways:   gateways,
		Tracker:    tracker,
		Database:   db,
		config:     config,
		middleware: NewMiddleware(config.JwtSecret, logger),
		Logger:     logger,
	}
}

// StartWebServer starts the HTTP server.
func StartWebServer(ctx context.Context, ws *WebServer) (*http.Server, error) {
	router := ws.InitRouter()

	// Configure CORS options
	corsOptions := cors.Options{
		AllowedOrigins:   ws.config.CorsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		Debug:            false,
	}

	handler := cors.New(corsOptions).Handler(router)

	server := &http.Server{
		Addr:    ws.config.ListenTo,
		Handler: handler,
	}

	go func() {
		ws.Logger.Infof("Server starting on %s", ws.config.ListenTo)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.Logger.Errorf("ListenAndServe(): %v", err)
		}
	}()

	ws.Logger.Infof("Server started on %s", ws.config.ListenTo)
	return server, nil
}

// InitRouter initializes the HTTP routes.
func (ws *WebServer) InitRouter() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	guard := ws.middleware.AuthMiddleware

	// Certification routes
	api.Handle("/certify", guard(http.HandlerFunc(ws.handleCertify))).Methods(http.MethodPost)
	api.Handle("/certify/batch", guard(http.HandlerFunc(ws.handleCertifyBatch))).Methods(http.MethodPost)
	api.HandleFunc("/verify", ws.handleVerify).Methods(http.MethodPost)

	// Proof lookups
	api.HandleFunc("/proofs", ws.handleGetProofs).Methods(http.MethodGet)
	api.HandleFunc("/proofs/hash/{hash}", ws.handleGetProofByHash).Methods(http.MethodGet)
	api.HandleFunc("/proofs/locator/{locator}", ws.handleGetProofByLocator).Methods(http.MethodGet)
	api.HandleFunc("/proofs/{id}", ws.handleGetProofDetail).Methods(http.MethodGet)
	api.Handle("/proofs/{id}/anchor", guard(http.HandlerFunc(ws.handleAnchorProof))).Methods(http.MethodPost)
	api.Handle("/proofs/{id}/mint", guard(http.HandlerFunc(ws.handleMintNFT))).Methods(http.MethodPost)

	// Gateway and deal routes
	api.HandleFunc("/gateways", ws.handleGetGateways).Methods(http.MethodGet)
	api.HandleFunc("/retrieve/{locator}", ws.handleRetrieve).Methods(http.MethodGet)
	api.HandleFunc("/deals/{locator}", ws.handleGetDealStatus).Methods(http.MethodGet)
	api.HandleFunc("/analytics/storage", ws.handleStorageAnalytics).Methods(http.MethodGet)

	// Webhook management
	api.HandleFunc("/webhooks", ws.handleGetWebhooks).Methods(http.MethodGet)
	api.Handle("/webhooks", guard(http.HandlerFunc(ws.handleAddWebhook))).Methods(http.MethodPost)
	api.HandleFunc("/webhooks/logs", ws.handleGetWebhookLogs).Methods(http.MethodGet)
	api.Handle("/webhooks/{id}", guard(http.HandlerFunc(ws.handleDeleteWebhook))).Methods(http.MethodDelete)
	api.Handle("/webhooks/{id}/toggle", guard(http.HandlerFunc(ws.handleToggleWebhook))).Methods(http.MethodPost)

	api.HandleFunc("/stats", ws.handleGetStats).Methods(http.MethodGet)

	return r
}

// readUpload pulls one named file out of a multipart request.
func readUpload(r *http.Request, field string) (string, string, []byte, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", "", nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		return "", "", nil, err
	}
	if len(data) > maxUploadBytes {
		return "", "", nil, errors.New("file exceeds upload limit")
	}

	return header.Filename, header.Header.Get("Content-Type"), data, nil
}

// handleCertify handles the POST /certify endpoint.
func (ws *WebServer) handleCertify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		ws.Logger.Errorf("Error parsing multipart form: %v", err)
		WriteErrorResponse(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	name, fileType, data, err := readUpload(r, "file")
	if err != nil {
		ws.Logger.Errorf("Failed to read uploaded file: %v", err)
		WriteErrorResponse(w, "File field is required", http.StatusBadRequest)
		return
	}

	proof, err := ws.Certifier.Certify(ctx, name, fileType, data)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateHash) {
			existing, lookupErr := ws.Database.GetProofByHash(ctx, proofs.ComputeDigest(data))
			if lookupErr == nil {
				WriteJSONResponse(w, http.StatusConflict, &HttpResp{
					Status:  "error",
					Message: "Content already certified",
					Data:    models.ProofDetailResponse{Proof: existing},
				})
				return
			}
			WriteErrorResponse(w, "Content already certified", http.StatusConflict)
			return
		}
		ws.Logger.WithError(err).Error("Certification failed")
		WriteErrorResponse(w, "Certification failed", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Proof created successfully", models.ProofDetailResponse{Proof: proof})
}

// handleCertifyBatch handles the POST /certify/batch endpoint.
func (ws *WebServer) handleCertifyBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		ws.Logger.Errorf("Error parsing multipart form: %v", err)
		WriteErrorResponse(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["files"]
	}
	if len(headers) == 0 {
		WriteErrorResponse(w, "At least one file is required", http.StatusBadRequest)
		return
	}

	var files []proofs.BatchFile
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			ws.Logger.Errorf("Failed to open uploaded file %s: %v", h.Filename, err)
			WriteErrorResponse(w, "Failed to read uploaded files", http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			ws.Logger.Errorf("Failed to read uploaded file %s: %v", h.Filename, err)
			WriteErrorResponse(w, "Failed to read uploaded files", http.StatusBadRequest)
			return
		}
		files = append(files, proofs.BatchFile{
			Name: h.Filename,
			Type: h.Header.Get("Content-Type"),
			Data: data,
		})
	}

	result := ws.Certifier.CertifyBatch(ctx, files)
	WriteSuccessResponse(w, "Batch processed", result)
}

// handleVerify handles the POST /verify endpoint.
func (ws *WebServer) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		ws.Logger.Errorf("Error parsing multipart form: %v", err)
		WriteErrorResponse(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	_, _, data, err := readUpload(r, "file")
	if err != nil {
		WriteErrorResponse(w, "File field is required", http.StatusBadRequest)
		return
	}
	proofID := r.FormValue("proof_id")

	result, err := ws.Certifier.Verify(ctx, data, proofID)
	if err != nil {
		if errors.Is(err, store.ErrProofNotFound) {
			WriteErrorResponse(w, "Proof not found", http.StatusNotFound)
			return
		}
		ws.Logger.WithError(err).Error("Verification failed")
		WriteErrorResponse(w, "Verification failed", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Verification completed", result)
}

// handleGetProofs handles the GET /proofs endpoint.
func (ws *WebServer) handleGetProofs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters for pagination
	query := r.URL.Query()
	page, err := strconv.Atoi(query.Get("page"))
	if err != nil || page < 1 {
		page = 1 // Default to page 1
	}
	perPage, err := strconv.Atoi(query.Get("per_page"))
	if err != nil || perPage < 1 {
		perPage = 50 // Default to 50 items per page
	}

	// Parse 'demo' query parameter for filtering
	demoParam := strings.ToLower(query.Get("demo"))
	var filterDemo *bool
	if demoParam == "true" {
		value := true
		filterDemo = &value
	} else if demoParam == "false" {
		value := false
		filterDemo = &value
	}

	proofsPage, total, err := ws.Database.ListProofsPaginated(ctx, page, perPage, filterDemo)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to load paginated proofs")
		WriteErrorResponse(w, "Failed to retrieve proofs", http.StatusInternalServerError)
		return
	}

	totalPages := (total + perPage - 1) / perPage

	response := models.ProofsResponse{
		Proofs:     proofsPage,
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}

	WriteSuccessResponse(w, "Proofs retrieved successfully", response)
}

// handleGetProofDetail handles the GET /proofs/{id} endpoint.
func (ws *WebServer) handleGetProofDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	id := vars["id"]

	proof, err := ws.Database.GetProof(ctx, id)
	if err != nil {
		ws.Logger.Errorf("Failed to get proof %s: %v", id, err)
		WriteErrorResponse(w, "Proof not found", http.StatusNotFound)
		return
	}

	WriteSuccessResponse(w, "Proof retrieved successfully", models.ProofDetailResponse{Proof: proof})
}

// handleGetProofByHash handles the GET /proofs/hash/{hash} endpoint.
func (ws *WebServer) handleGetProofByHash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	hash := strings.ToLower(vars["hash"])

	proof, err := ws.Database.GetProofByHash(ctx, hash)
	if err != nil {
		WriteErrorResponse(w, "Proof not found", http.StatusNotFound)
		return
	}

	WriteSuccessResponse(w, "Proof retrieved successfully", models.ProofDetailResponse{Proof: proof})
}

// handleGetProofByLocator handles the GET /proofs/locator/{locator} endpoint.
func (ws *WebServer) handleGetProofByLocator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	locator := vars["locator"]

	proof, err := ws.Database.GetProofByCID(ctx, locator)
	if err != nil {
		WriteErrorResponse(w, "Proof not found", http.StatusNotFound)
		return
	}

	WriteSuccessResponse(w, "Proof retrieved successfully", models.ProofDetailResponse{Proof: proof})
}

// handleAnchorProof handles the POST /proofs/{id}/anchor endpoint.
func (ws *WebServer) handleAnchorProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	id := vars["id"]

	proof, err := ws.Certifier.AnchorProof(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrProofNotFound) {
			WriteErrorResponse(w, "Proof not found", http.StatusNotFound)
			return
		}
		ws.Logger.WithError(err).WithField("proof_id", id).Error("Failed to anchor proof")
		WriteErrorResponse(w, err.Error(), http.StatusConflict)
		return
	}

	WriteSuccessResponse(w, "Proof anchored successfully", models.ProofDetailResponse{Proof: proof})
}

// handleMintNFT handles the POST /proofs/{id}/mint endpoint.
func (ws *WebServer) handleMintNFT(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	id := vars["id"]

	proof, err := ws.Certifier.MintNFT(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrProofNotFound) {
			WriteErrorResponse(w, "Proof not found", http.StatusNotFound)
			return
		}
		ws.Logger.WithError(err).WithField("proof_id", id).Error("Failed to mint certificate")
		WriteErrorResponse(w, err.Error(), http.StatusConflict)
		return
	}

	WriteSuccessResponse(w, "Certificate minted successfully", models.ProofDetailResponse{Proof: proof})
}

// handleGetGateways handles the GET /gateways endpoint.
func (ws *WebServer) handleGetGateways(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snapshot := ws.Gateways.HealthSnapshot(ctx)
	WriteSuccessResponse(w, "Gateway health retrieved successfully", models.GatewaysResponse{Gateways: snapshot})
}

// handleRetrieve handles the GET /retrieve/{locator} endpoint. The
// payload is streamed as-is; retrieval metadata rides in headers.
func (ws *WebServer) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	locator := vars["locator"]

	result, err := ws.Gateways.FetchWithFailover(ctx, locator, gateway.FetchOptions{})
	if err != nil {
		ws.Logger.WithError(err).WithField("locator", locator).Error("Failover retrieval failed")
		WriteErrorResponse(w, "Content could not be retrieved from any gateway", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Gateway", result.Endpoint)
	w.Header().Set("X-Attempts", strconv.Itoa(len(result.Attempts)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Payload); err != nil {
		ws.Logger.WithError(err).Error("Failed to write retrieved payload")
	}
}

// handleGetDealStatus handles the GET /deals/{locator} endpoint.
func (ws *WebServer) handleGetDealStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	locator := vars["locator"]

	summary, err := ws.Tracker.Status(ctx, locator)
	if err != nil {
		ws.Logger.WithError(err).WithField("locator", locator).Error("Failed to resolve deal status")
		WriteErrorResponse(w, "Failed to resolve deal status", http.StatusInternalServerError)
		return
	}

	response := models.DealStatusResponse{
		Summary: summary,
		Health:  deals.HealthScore(summary),
	}

	WriteSuccessResponse(w, "Deal status retrieved successfully", response)
}

// handleStorageAnalytics handles the GET /analytics/storage endpoint.
// It folds deal summaries across every stored proof's locator.
func (ws *WebServer) handleStorageAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	all, err := ws.Database.ListProofs(ctx)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to list proofs for analytics")
		WriteErrorResponse(w, "Failed to compute analytics", http.StatusInternalServerError)
		return
	}

	cids := make([]string, 0, len(all))
	for _, p := range all {
		if p.CID != "" {
			cids = append(cids, p.CID)
		}
	}

	analytics, err := ws.Tracker.Analytics(ctx, cids)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to compute storage analytics")
		WriteErrorResponse(w, "Failed to compute analytics", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Storage analytics computed successfully", analytics)
}

// webhookRequest is the JSON payload for creating a webhook.
type webhookRequest struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

// handleGetWebhooks handles the GET /webhooks endpoint.
func (ws *WebServer) handleGetWebhooks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hooks, err := ws.Database.ListWebhooks(ctx)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to list webhooks")
		WriteErrorResponse(w, "Failed to retrieve webhooks", http.StatusInternalServerError)
		return
	}

	// Secrets never leave the server.
	for i := range hooks {
		hooks[i].Secret = ""
	}

	WriteSuccessResponse(w, "Webhooks retrieved successfully", hooks)
}

// handleAddWebhook handles the POST /webhooks endpoint.
func (ws *WebServer) handleAddWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.Logger.Errorf("Invalid JSON payload: %v", err)
		WriteErrorResponse(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.URL == "" {
		WriteErrorResponse(w, "URL field is required", http.StatusBadRequest)
		return
	}
	if len(req.Events) == 0 {
		for _, k := range webhooks.EventKinds() {
			req.Events = append(req.Events, string(k))
		}
	}
	for _, e := range req.Events {
		if !webhooks.ValidKind(e) {
			WriteErrorResponse(w, "Unknown event kind: "+e, http.StatusBadRequest)
			return
		}
	}

	hook := models.Webhook{
		ID:        uuid.NewString(),
		Name:      req.Name,
		URL:       req.URL,
		Events:    req.Events,
		Secret:    req.Secret,
		Enabled:   true,
		CreatedAt: time.Now(),
	}

	if err := ws.Database.AddWebhook(ctx, hook); err != nil {
		ws.Logger.WithError(err).Error("Failed to add webhook")
		WriteErrorResponse(w, "Failed to add webhook", http.StatusInternalServerError)
		return
	}

	hook.Secret = ""
	WriteSuccessResponse(w, "Webhook added successfully", hook)
}

// handleDeleteWebhook handles the DELETE /webhooks/{id} endpoint.
func (ws *WebServer) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	id := vars["id"]

	if err := ws.Database.DeleteWebhook(ctx, id); err != nil {
		if errors.Is(err, store.ErrWebhookNotFound) {
			WriteErrorResponse(w, "Webhook not found", http.StatusNotFound)
			return
		}
		ws.Logger.Errorf("Failed to delete webhook %s: %v", id, err)
		WriteErrorResponse(w, "Failed to delete webhook", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Webhook deleted successfully", nil)
}

// handleToggleWebhook handles the POST /webhooks/{id}/toggle endpoint.
func (ws *WebServer) handleToggleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	id := vars["id"]

	hook, err := ws.Database.GetWebhook(ctx, id)
	if err != nil {
		WriteErrorResponse(w, "Webhook not found", http.StatusNotFound)
		return
	}

	hook.Enabled = !hook.Enabled
	if err := ws.Database.UpdateWebhook(ctx, hook); err != nil {
		ws.Logger.WithError(err).Error("Failed to update webhook")
		WriteErrorResponse(w, "Failed to update webhook", http.StatusInternalServerError)
		return
	}

	hook.Secret = ""
	WriteSuccessResponse(w, "Webhook updated successfully", hook)
}

// handleGetWebhookLogs handles the GET /webhooks/logs endpoint.
func (ws *WebServer) handleGetWebhookLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 || limit > store.WebhookLogCap {
		limit = store.WebhookLogCap
	}

	logs, err := ws.Database.ListWebhookLogs(ctx, limit)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to list webhook logs")
		WriteErrorResponse(w, "Failed to retrieve webhook logs", http.StatusInternalServerError)
		return
	}

	WriteSuccessResponse(w, "Webhook logs retrieved successfully", logs)
}

// handleGetStats handles the GET /api/stats endpoint.
func (ws *WebServer) handleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := ws.Certifier.Stats(ctx)
	if err != nil {
		ws.Logger.WithError(err).Error("Failed to retrieve stats")
		WriteErrorResponse(w, "Failed to retrieve statistics", http.StatusInternalServerError)
		return
	}

	stats.HealthyGateways = ws.Gateways.HealthyCount(ctx)
	stats.TrackedLocators = ws.Tracker.CachedLocators()

	WriteSuccessResponse(w, "Statistics retrieved successfully", stats)
}
