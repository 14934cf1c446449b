package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"strings"

	"github.com/rs/cors"
	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/volrender/catalog"
	"github.com/janelia-flyem/volrender/volrender"
)

// imagePattern matches
// /image/:dataset/:x/:y/:z/:upx/:upy/:upz/:vx/:vy/:vz/:lowquality/:options?
var imagePattern = regexp.MustCompile(`^/image/(?P<dataset>[^/]+)` +
	`/(?P<x>[^/]+)/(?P<y>[^/]+)/(?P<z>[^/]+)` +
	`/(?P<upx>[^/]+)/(?P<upy>[^/]+)/(?P<upz>[^/]+)` +
	`/(?P<vx>[^/]+)/(?P<vy>[^/]+)/(?P<vz>[^/]+)` +
	`/(?P<lowquality>[^/]+)(?:/(?P<options>[^/]*))?$`)

// Server answers image requests against a catalog of datasets.
type Server struct {
	catalog   catalog.Catalog
	webClient string
	saveDir   string
	cache     *imageCache
	output    Output
	mux       *web.Mux
}

// New returns a server for the catalog using the current server configuration.
func New(cat catalog.Catalog) *Server {
	s := &Server{
		catalog:   cat,
		webClient: WebClientDir(),
		saveDir:   SaveDir(),
		cache:     newImageCache(ImageCacheBytes()),
		output:    engineOutput{},
	}
	s.mux = s.newMux(CorsDomains())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) newMux(corsDomains []string) *web.Mux {
	mux := web.New()
	mux.Use(logHTTPPanics)
	if len(corsDomains) > 0 {
		volrender.Infof("Allowing cross-origin requests from %s\n", strings.Join(corsDomains, ", "))
		c := cors.New(cors.Options{
			AllowedOrigins: corsDomains,
			AllowedMethods: []string{"GET", "HEAD"},
		})
		mux.Use(c.Handler)
	}
	mux.Get("/", s.indexHandler)
	mux.Get("/js/:filename", s.staticHandler("js"))
	mux.Get("/css/:filename", s.staticHandler("css"))
	mux.Get("/datasets", s.datasetsHandler)
	mux.Get(imagePattern, s.imageHandler)
	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFound(w, r, "Not Found")
	})
	return mux
}

// BadRequest writes a 400 response with the given message and logs it.  The
// message may be an error or a format string followed by its arguments.
func BadRequest(w http.ResponseWriter, r *http.Request, message interface{}, args ...interface{}) {
	httpError(w, r, http.StatusBadRequest, message, args...)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, r *http.Request, message interface{}, args ...interface{}) {
	httpError(w, r, http.StatusNotFound, message, args...)
}

// ServerError writes a 500 response.
func ServerError(w http.ResponseWriter, r *http.Request, message interface{}, args ...interface{}) {
	httpError(w, r, http.StatusInternalServerError, message, args...)
}

func httpError(w http.ResponseWriter, r *http.Request, status int, message interface{}, args ...interface{}) {
	var errorMsg string
	switch v := message.(type) {
	case error:
		errorMsg = v.Error()
	case string:
		errorMsg = fmt.Sprintf(v, args...)
	default:
		errorMsg = fmt.Sprintf("%v", v)
	}
	if status >= http.StatusInternalServerError {
		volrender.Errorf("%s (%s)\n", errorMsg, r.URL.Path)
	} else {
		volrender.Infof("HTTP %d: %s (%s)\n", status, errorMsg, r.URL.Path)
	}
	http.Error(w, errorMsg, status)
}

// logHTTPPanics recovers from panics in handlers, logging them and
// responding with a server error.
func logHTTPPanics(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if e := recover(); e != nil {
				volrender.Criticalf("Caught panic on HTTP request: %s\n%s\n", e, debug.Stack())
				ServerError(w, r, "internal error handling %s", r.URL.Path)
			}
		}()
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.webClient, "index.html"))
}

// staticHandler serves files from a subdirectory of the web client.
func (s *Server) staticHandler(subdir string) func(web.C, http.ResponseWriter, *http.Request) {
	return func(c web.C, w http.ResponseWriter, r *http.Request) {
		filename := c.URLParams["filename"]
		if filename == "" || filename == "." || strings.Contains(filename, "..") {
			NotFound(w, r, "Not Found")
			return
		}
		path := filepath.Join(s.webClient, subdir, filename)
		volrender.Debugf("http request: %s -> %s\n", r.URL.Path, path)
		http.ServeFile(w, r, path)
	}
}

type datasetInfo struct {
	Name      string `json:"name"`
	TimeSteps int    `json:"timesteps"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	ColorMap  string `json:"colormap"`
}

// datasetsHandler lists the datasets with their configured image sizes.
func (s *Server) datasetsHandler(w http.ResponseWriter, r *http.Request) {
	infos := []datasetInfo{}
	for _, name := range s.catalog.Names() {
		rc := s.catalog.Get(name)
		infos = append(infos, datasetInfo{
			Name:      name,
			TimeSteps: rc.Length(),
			Width:     rc.Config.ImageWidth,
			Height:    rc.Config.ImageHeight,
			ColorMap:  rc.Config.ColorMap,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(infos); err != nil {
		volrender.Errorf("writing dataset list: %v\n", err)
	}
}
