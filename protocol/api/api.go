package api

import (
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/colinkho/media-sub001/configure"
	"github.com/colinkho/media-sub001/format"
	"github.com/colinkho/media-sub001/utils/uid"

	jwtmiddleware "github.com/auth0/go-jwt-middleware"
	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Response contains ResponseWriter, status and data
type Response struct {
	w      http.ResponseWriter
	Status int         `json:"status"`
	Data   interface{} `json:"data"`
}

// SendJSON send json data as response with status
func (r *Response) SendJSON() (int, error) {
	resp, _ := json.Marshal(r)
	r.w.Header().Set("Content-Type", "application/json")
	r.w.WriteHeader(r.Status)
	return r.w.Write(resp)
}

// Server serve the http api
type Server struct {
	registry    *format.Registry
	cache       *ReportCache
	maxFileSize int64
	rootDir     string
	realRootDir string
}

// NewServer return a new Server probing files under rootDir
func NewServer(registry *format.Registry, cache *ReportCache, maxFileSize int64, rootDir string) *Server {
	root, err := filepath.Abs(rootDir)
	if err != nil {
		root = filepath.Clean(rootDir)
	}
	realRoot := root
	if real, err := filepath.EvalSymlinks(root); err == nil {
		realRoot = real
	}
	return &Server{
		registry:    registry,
		cache:       cache,
		maxFileSize: maxFileSize,
		rootDir:     root,
		realRootDir: realRoot,
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolve maps a requested path to a file under rootDir, relative paths
// are taken from rootDir. Symlinks leaving rootDir are rejected.
func (s *Server) resolve(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.rootDir, path)
	}
	path = filepath.Clean(path)
	if !within(s.rootDir, path) && !within(s.realRootDir, path) {
		return "", false
	}
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		// missing files are reported by the caller
		return path, true
	}
	return real, within(s.realRootDir, real)
}

// JWTMiddleware is a jwt middleware
// If jwt.secret is specified in config, this middleware will be activated.
func JWTMiddleware(next http.Handler) http.Handler {
	isJWT := len(configure.Config.GetString("jwt.secret")) > 0
	if !isJWT {
		return next
	}

	log.Info("Using JWT middleware")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var algorithm jwt.SigningMethod
		if len(configure.Config.GetString("jwt.algorithm")) > 0 {
			algorithm = jwt.GetSigningMethod(configure.Config.GetString("jwt.algorithm"))
		}

		if algorithm == nil {
			algorithm = jwt.SigningMethodHS256
		}

		jwtMiddleware := jwtmiddleware.New(jwtmiddleware.Options{
			Extractor: jwtmiddleware.FromFirst(jwtmiddleware.FromAuthHeader, jwtmiddleware.FromParameter("jwt")),
			ValidationKeyGetter: func(token *jwt.Token) (interface{}, error) {
				return []byte(configure.Config.GetString("jwt.secret")), nil
			},
			SigningMethod: algorithm,
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err string) {
				res := &Response{
					w:      w,
					Status: 403,
					Data:   err,
				}
				res.SendJSON()
			},
		})

		jwtMiddleware.HandlerWithNext(w, r, next.ServeHTTP)
	})
}

// Handler returns the api routes, /metrics is not behind the jwt middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/probe", s.handleProbe)
	mux.HandleFunc("/formats", s.handleFormats)

	root := http.NewServeMux()
	root.Handle("/metrics", promhttp.Handler())
	root.Handle("/", promhttp.InstrumentHandlerDuration(requestDurations, JWTMiddleware(mux)))
	return root
}

// Serve serves http request
func (s *Server) Serve(l net.Listener) error {
	return http.Serve(l, s.Handler())
}

// handleFormats lists the registered formats
// the URL schema like:
//  http://127.0.0.1:8090/formats
func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	res := &Response{
		w:      w,
		Data:   s.registry.Names(),
		Status: 200,
	}
	res.SendJSON()
}

// handleProbe probes a local file
// the URL schema like:
//  http://127.0.0.1:8090/probe?path=/data/PXL_0001.MP.jpg
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	res := &Response{
		w:      w,
		Data:   nil,
		Status: 200,
	}
	defer res.SendJSON()

	if err := r.ParseForm(); err != nil {
		res.Status = 400
		res.Data = "url: /probe?path=<FILE_PATH>"
		return
	}
	path := r.Form.Get("path")
	if len(path) == 0 {
		res.Status = 400
		res.Data = "url: /probe?path=<FILE_PATH>"
		return
	}

	path, ok := s.resolve(path)
	if !ok {
		res.Status = 403
		res.Data = "path outside root_dir"
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		res.Status = 404
		res.Data = "file not found"
		return
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		res.Status = 413
		res.Data = "file too large"
		return
	}

	if report, ok := s.cache.Get(path, info); ok {
		cacheHits.Inc()
		res.Data = report
		return
	}

	requestID := uid.NewRequestID()
	f, err := os.Open(path)
	if err != nil {
		res.Status = 500
		res.Data = err.Error()
		return
	}
	defer f.Close()

	report, err := s.registry.Probe(r.Context(), f, info.Size())
	switch {
	case errors.Is(err, format.ErrUnknownFormat):
		probesTotal.WithLabelValues("unknown", "unsupported").Inc()
		res.Status = 415
		res.Data = err.Error()
		return
	case err != nil:
		probesTotal.WithLabelValues("unknown", "error").Inc()
		log.WithField("request", requestID).Warnf("probe %s: %v", path, err)
		res.Status = 500
		res.Data = err.Error()
		return
	}

	probesTotal.WithLabelValues(report.Format, "ok").Inc()
	log.WithField("request", requestID).Debugf("probed %s as %s in %s", path, report.Format, report.Elapsed)
	s.cache.Set(path, info, report)
	res.Data = report
}
