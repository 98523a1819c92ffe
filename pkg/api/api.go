package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"railwatch/pkg/analyzer"
	"railwatch/pkg/lexer"
	"railwatch/pkg/models"
	"railwatch/pkg/storage"
)

const maxAnalysesLimit = 100

// MessageWriter is the subset of *kafka.Writer used by the API.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type API struct {
	ServiceName string
	DB          storage.Storage

	r  *mux.Router
	an *analyzer.Analyzer
	kw MessageWriter // request logs
	ew MessageWriter // stored analyses

	now func() time.Time
}

// New builds the API. logWriter and eventWriter are optional; pass nil to
// disable request logging or analysis events.
func New(name string, an *analyzer.Analyzer, db storage.Storage, logWriter, eventWriter MessageWriter) *API {
	api := API{
		ServiceName: name,
		DB:          db,
		r:           mux.NewRouter(),
		an:          an,
		kw:          logWriter,
		ew:          eventWriter,
		now:         time.Now,
	}
	api.endpoints()

	return &api
}

func (api *API) Router() *mux.Router {
	return api.r
}

// Analyzer returns the analyzer shared by the handlers.
func (api *API) Analyzer() *analyzer.Analyzer {
	return api.an
}

func (api *API) endpoints() {
	api.r.Use(api.requestIDMiddleware)
	api.r.Use(api.headerMiddleware)

	if api.kw != nil {
		api.r.Use(api.loggingMiddleware(api.kw))
	}

	api.r.HandleFunc("/analyze", api.analyzeHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/check", api.checkHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/match", api.matchHandler).Methods(http.MethodPost)
	api.r.HandleFunc("/tokenize", api.tokenizeHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/rules", api.rulesHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/analyses/latest", api.latestAnalysesHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/analyses/problems/{category}", api.problemAnalysesHandler).Methods(http.MethodGet)
	api.r.HandleFunc("/analyses/{id:[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$}", api.analysisDetailedHandler).Methods(http.MethodGet)
}

func (api *API) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	post, ok := decodePost(w, r, "analyzeHandler", sID)
	if !ok {
		return
	}

	a := analyzer.NewAnalysis(post, api.an.Analyze(post.Text), api.now())
	if _, err := api.DB.AddAnalysis(r.Context(), a); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[analyzeHandler][%s] AddAnalysis() returned error: %v", sID, err)
		return
	}
	api.Publish(r.Context(), a)

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(a); err != nil {
		log.Errorf("[analyzeHandler][%s] failed to encode response data: %v", sID, err)
		return
	}
	log.Debugf("[analyzeHandler][%s] analysis %v stored, %d problems, %d flagged", sID, a.ID, len(a.Problems), len(a.Flagged))
}

// checkHandler answers 422 when the post contains problem tokens or
// blocklisted words. Nothing is stored.
func (api *API) checkHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	post, ok := decodePost(w, r, "checkHandler", sID)
	if !ok {
		return
	}

	report := api.an.Analyze(post.Text)
	status := http.StatusOK
	if report.HasIssues() {
		status = http.StatusUnprocessableEntity
	}

	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(analyzer.NewAnalysis(post, report, api.now())); err != nil {
		log.Errorf("[checkHandler][%s] failed to encode response data: %v", sID, err)
		return
	}
	log.Debugf("[checkHandler][%s] response %d sent to: %v", sID, status, r.RemoteAddr)
}

func (api *API) matchHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	var req MatchRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		log.Debugf("[matchHandler][%s] failed to decode request body: %v", sID, err)
		return
	}
	defer r.Body.Close()

	if strings.TrimSpace(req.Word) == "" {
		http.Error(w, "Empty word", http.StatusBadRequest)
		log.Debugf("[matchHandler][%s] request with empty word", sID)
		return
	}

	api.writeJSON(w, "matchHandler", sID, api.an.MatchWord(req.Word))
}

func (api *API) tokenizeHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	text := r.URL.Query().Get("text")
	if text == "" {
		http.Error(w, "Empty text parameter", http.StatusBadRequest)
		log.Debugf("[tokenizeHandler][%s] request with empty text parameter", sID)
		return
	}

	api.writeJSON(w, "tokenizeHandler", sID, api.an.Tokenize(text))
}

func (api *API) rulesHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	table := api.an.Table()
	resp := RulesResponse{
		Problem: table.ProblemRules(),
		General: table.GeneralRules(),
	}
	api.writeJSON(w, "rulesHandler", sID, resp)
}

func (api *API) latestAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	page, limit, ok := pageParams(w, r, "latestAnalysesHandler", sID)
	if !ok {
		return
	}

	analyses, numPages, err := api.DB.LatestAnalyses(r.Context(), page, limit)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[latestAnalysesHandler][%s] LatestAnalyses() returned error: %v", sID, err)
		return
	}

	resp := AnalysesResponse{
		Analyses:   analyses,
		Pagination: Pagination{TotalPages: numPages, CurrentPage: page, Limit: limit},
	}
	api.writeJSON(w, "latestAnalysesHandler", sID, resp)
}

func (api *API) problemAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	category, err := lexer.ParseCategory(mux.Vars(r)["category"])
	if err == nil {
		err = storage.CheckCategory(category)
	}
	if err != nil {
		http.Error(w, "Invalid problem category", http.StatusBadRequest)
		log.Debugf("[problemAnalysesHandler][%s] %v", sID, err)
		return
	}

	page, limit, ok := pageParams(w, r, "problemAnalysesHandler", sID)
	if !ok {
		return
	}

	analyses, numPages, err := api.DB.ProblemAnalyses(r.Context(), category, page, limit)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[problemAnalysesHandler][%s] ProblemAnalyses() returned error: %v", sID, err)
		return
	}

	resp := AnalysesResponse{
		Analyses:   analyses,
		Pagination: Pagination{TotalPages: numPages, CurrentPage: page, Limit: limit},
	}
	api.writeJSON(w, "problemAnalysesHandler", sID, resp)
}

func (api *API) analysisDetailedHandler(w http.ResponseWriter, r *http.Request) {
	sID := shorten(GetRequestID(r.Context()))

	id, err := uuid.FromString(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid UUID parameter", http.StatusBadRequest)
		log.Debugf("[analysisDetailedHandler][%s] failed to parse analysis ID: %v", sID, err)
		return
	}

	a, err := api.DB.Analysis(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrAnalysisNotFound) {
			http.Error(w, "Analysis not found", http.StatusNotFound)
			log.Debugf("[analysisDetailedHandler][%s] failed to retrieve analysis: %v", sID, err)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[analysisDetailedHandler][%s] analysis ID:%v: %v", sID, id, err)
		return
	}

	api.writeJSON(w, "analysisDetailedHandler", sID, a)
}

// Publish sends a stored analysis to the events topic, keyed by its ID.
// Failures are logged and do not affect the caller.
func (api *API) Publish(ctx context.Context, a models.Analysis) {
	if api.ew == nil {
		return
	}

	b, err := json.Marshal(a)
	if err != nil {
		log.Errorf("[Publish] failed to marshal analysis %v: %v", a.ID, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = api.ew.WriteMessages(ctx, kafka.Message{Key: []byte(a.ID.String()), Value: b})
	if err != nil {
		log.Warnf("[Publish] failed to write analysis %v to Kafka: %v", a.ID, err)
		return
	}
	log.Debugf("[Publish] analysis %v sent to Kafka", a.ID)
}

func (api *API) writeJSON(w http.ResponseWriter, handler, sID string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		log.Errorf("[%s][%s] failed to encode response data: %v", handler, sID, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(append(b, '\n'))
}

func decodePost(w http.ResponseWriter, r *http.Request, handler, sID string) (models.Post, bool) {
	var post models.Post
	err := json.NewDecoder(r.Body).Decode(&post)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		log.Debugf("[%s][%s] failed to decode request body: %v", handler, sID, err)
		return models.Post{}, false
	}
	defer r.Body.Close()

	if strings.TrimSpace(post.Text) == "" {
		http.Error(w, "Empty post text", http.StatusBadRequest)
		log.Debugf("[%s][%s] request with empty text", handler, sID)
		return models.Post{}, false
	}

	return post, true
}

// pageParams reads page and limit query parameters. Missing or invalid values
// fall back to page 1 and storage.DefaultLimit; a limit above maxAnalysesLimit
// is rejected.
func pageParams(w http.ResponseWriter, r *http.Request, handler, sID string) (page, limit int, ok bool) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err = strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = storage.DefaultLimit
	}

	if limit > maxAnalysesLimit {
		http.Error(w, "Limit parameter is too big", http.StatusBadRequest)
		log.Debugf("[%s][%s] request with too big limit parameter", handler, sID)
		return 0, 0, false
	}

	return page, limit, true
}

// GetRequestID extracts the request ID from the context.
// It returns the request ID as a string if present, otherwise returns an empty string.
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// shorten truncates a string to 6 characters if it is longer than 6, appends '...' at the end,
// otherwise it returns the string unchanged.
func shorten(s string) string {
	if len(s) > 6 {
		return s[:6] + "..."
	}
	return s
}
