package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"djc/blocks"
	"djc/config"
	"djc/css"
	"djc/misc"
	"djc/store"
)

const (
	formField       = "file"
	defaultDownload = "divi-converted.json"
	// room for multipart framing on top of file itself
	multipartOverhead = 64 << 10
)

// Messages are part of the API, clients may match them.
const (
	msgNoFile      = "Please upload a file."
	msgInvalidType = "Invalid file type. Please upload a .json or .txt file."
	msgTooLarge    = "File is too large."
	msgEmpty       = "Could not read file contents."
	msgNoBlocks    = "No Divi blocks found or JSON could not be parsed."
	msgExpired     = "Download expired or invalid."
	msgInternal    = "Internal server error."
)

var (
	allowedMIME       = []string{"application/json", "text/plain", "text/json", "application/octet-stream"}
	allowedExtensions = []string{"json", "txt"}
)

type handler struct {
	engine   *blocks.Engine
	renderer *css.Renderer
	store    store.Store
	indent   string
	maxSize  int64
	checkCSS bool
	log      *zap.Logger
	now      func() time.Time
}

func newHandler(cfg *config.Config, deps Deps, log *zap.Logger) *handler {
	return &handler{
		engine:   deps.Engine,
		renderer: deps.Renderer,
		store:    deps.Store,
		indent:   cfg.Output.Indent,
		maxSize:  cfg.Engine.MaxInputSize,
		checkCSS: cfg.Engine.CheckCSS,
		log:      log,
		now:      time.Now,
	}
}

type download struct {
	Key      string `json:"key"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type convertReply struct {
	Filename   string              `json:"filename"`
	CSSText    string              `json:"css_text"`
	MergedJSON string              `json:"merged_json"`
	Stats      *blocks.Diagnostics `json:"stats"`
	Downloads  struct {
		CSS  download `json:"css"`
		JSON download `json:"json"`
	} `json:"downloads"`
}

type failureReply struct {
	Error    string              `json:"error"`
	Attempts []string            `json:"attempts"`
	Stats    *blocks.Diagnostics `json:"stats,omitempty"`
}

func (h *handler) handleConvert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+multipartOverhead)

	file, header, err := r.FormFile(formField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, msgTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, msgNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !acceptedUpload(header.Header.Get("Content-Type"), header.Filename) {
		http.Error(w, msgInvalidType, http.StatusUnsupportedMediaType)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxSize+1))
	if err != nil {
		http.Error(w, msgEmpty, http.StatusBadRequest)
		return
	}
	if int64(len(data)) > h.maxSize {
		http.Error(w, msgTooLarge, http.StatusRequestEntityTooLarge)
		return
	}
	if len(data) == 0 {
		http.Error(w, msgEmpty, http.StatusBadRequest)
		return
	}
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		h.log.Debug("Binary upload rejected", zap.String("file", header.Filename), zap.String("detected", kind.MIME.Value))
		http.Error(w, msgInvalidType, http.StatusUnsupportedMediaType)
		return
	}

	res, err := h.engine.Convert(string(data))
	if err != nil {
		var cerr *blocks.ConversionError
		if !errors.As(err, &cerr) {
			h.fail(w, "Conversion failed", err)
			return
		}
		h.log.Info("Nothing converted", zap.String("file", header.Filename), zap.Error(err))
		writeJSON(w, http.StatusUnprocessableEntity, failureReply{Error: msgNoBlocks, Attempts: cerr.Attempts, Stats: cerr.Diagnostics})
		return
	}

	merged, err := res.MergedJSON(h.indent)
	if err != nil {
		h.fail(w, "Unable to serialize blocks", err)
		return
	}
	cssText := h.renderer.Render(res.Style)
	if h.checkCSS {
		sheet := css.NewParser(h.log).Parse([]byte(cssText), header.Filename)
		if len(sheet.Warnings) > 0 {
			h.log.Warn("Rendered stylesheet has problems", zap.String("file", header.Filename), zap.Strings("warnings", sheet.Warnings))
		}
		if conflicts := sheet.Conflicts(); len(conflicts) > 0 {
			h.log.Warn("Rendered stylesheet overrides its own declarations", zap.String("file", header.Filename), zap.Strings("conflicts", conflicts))
		}
	}

	reply := convertReply{
		Filename:   "divi-converted-" + h.now().Format("20060102-150405") + ".json",
		CSSText:    cssText,
		MergedJSON: string(merged),
		Stats:      res.Diagnostics,
	}
	cssName := strings.TrimSuffix(reply.Filename, ".json") + ".css"

	if reply.Downloads.CSS, err = h.keep(r, cssName, "text/css; charset=utf-8", []byte(cssText)); err != nil {
		h.fail(w, "Unable to store css", err)
		return
	}
	if reply.Downloads.JSON, err = h.keep(r, reply.Filename, "application/json; charset=utf-8", merged); err != nil {
		h.fail(w, "Unable to store json", err)
		return
	}

	h.log.Info("Converted",
		zap.String("file", header.Filename), zap.String("strategy", res.Diagnostics.Strategy),
		zap.Int("types", res.Blocks.Len()), zap.Int("ignored", res.Diagnostics.Ignored))
	writeJSON(w, http.StatusOK, reply)
}

func (h *handler) keep(r *http.Request, name, contentType string, data []byte) (download, error) {
	key, err := h.store.Put(r.Context(), store.Artifact{Name: name, ContentType: contentType, Data: data})
	if err != nil {
		return download{}, err
	}
	q := url.Values{"key": {key}, "filename": {name}}
	return download{Key: key, Filename: name, URL: "/download?" + q.Encode()}, nil
}

func (h *handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.FormValue("key"))
	filename := sanitizeFileName(r.FormValue("filename"))

	if len(key) == 0 {
		http.Error(w, msgExpired, http.StatusNotFound)
		return
	}
	a, err := h.store.Take(r.Context(), key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, msgExpired, http.StatusNotFound)
			return
		}
		h.fail(w, "Unable to get artifact", err)
		return
	}

	ctype := "application/json"
	if strings.HasSuffix(filename, ".css") {
		ctype = "text/css"
	}

	hdr := w.Header()
	noCache(hdr)
	hdr.Set("Content-Description", "File Transfer")
	hdr.Set("Content-Type", ctype+"; charset=utf-8")
	hdr.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	hdr.Set("Content-Length", fmt.Sprint(len(a.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(a.Data); err != nil {
		h.log.Warn("Unable to send artifact", zap.String("key", key), zap.Error(err))
	}
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": misc.GetVersion(),
	})
}

func (h *handler) fail(w http.ResponseWriter, msg string, err error) {
	h.log.Error(msg, zap.Error(err))
	http.Error(w, msgInternal, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func noCache(hdr http.Header) {
	hdr.Set("Expires", "Wed, 11 Jan 1984 05:00:00 GMT")
	hdr.Set("Cache-Control", "no-cache, must-revalidate, max-age=0, no-store, private")
	hdr.Del("Last-Modified")
}

// acceptedUpload follows declared type or, failing that, file extension.
func acceptedUpload(contentType, name string) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && slices.Contains(allowedMIME, mt) {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return slices.Contains(allowedExtensions, ext)
}

// sanitizeFileName keeps extension and makes the rest safe for a header value.
func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	ext := strings.ToLower(filepath.Ext(name))
	stem := slug.Make(strings.TrimSuffix(name, filepath.Ext(name)))
	ext = strings.Map(func(r rune) rune {
		if r == '.' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, ext)
	if len(stem) == 0 {
		return defaultDownload
	}
	if len(ext) <= 1 {
		return stem
	}
	return stem + ext
}
