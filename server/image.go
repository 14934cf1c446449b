package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/twinj/uuid"
	"github.com/zenazn/goji/web"

	"github.com/janelia-flyem/volrender/catalog"
	"github.com/janelia-flyem/volrender/render"
	"github.com/janelia-flyem/volrender/volrender"
)

const (
	// LowQuality is the quality value that selects LowQualitySize images.
	LowQuality = 1

	// LowQualitySize is the width and height of low quality images.
	LowQualitySize = 64
)

// Output produces images from captured frames.
type Output interface {
	WritePNG(w io.Writer, f render.Frame) error
	SaveImage(path string, f render.Frame) error
}

// engineOutput renders with the render package.
type engineOutput struct{}

func (engineOutput) WritePNG(w io.Writer, f render.Frame) error {
	return f.WritePNG(w)
}

func (engineOutput) SaveImage(path string, f render.Frame) error {
	return f.SaveImage(path)
}

// imageRequest holds the parsed path parameters of an image request.
type imageRequest struct {
	dataset    string
	position   [3]int
	up         [3]float64
	view       [3]float64
	lowQuality int
	options    string
}

func parseImageRequest(params map[string]string) (*imageRequest, error) {
	req := &imageRequest{
		dataset: params["dataset"],
		options: params["options"],
	}
	for i, key := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(params[key])
		if err != nil {
			return nil, fmt.Errorf("bad camera position %s %q", key, params[key])
		}
		req.position[i] = v
	}
	for i, key := range []string{"upx", "upy", "upz"} {
		v, err := strconv.ParseFloat(params[key], 64)
		if err != nil {
			return nil, fmt.Errorf("bad up vector %s %q", key, params[key])
		}
		req.up[i] = v
	}
	for i, key := range []string{"vx", "vy", "vz"} {
		v, err := strconv.ParseFloat(params[key], 64)
		if err != nil {
			return nil, fmt.Errorf("bad view direction %s %q", key, params[key])
		}
		req.view[i] = v
	}
	q, err := strconv.Atoi(params["lowquality"])
	if err != nil {
		return nil, fmt.Errorf("bad quality %q", params["lowquality"])
	}
	req.lowQuality = q
	return req, nil
}

// imageHandler renders a dataset from the requested camera pose.
func (s *Server) imageHandler(c web.C, w http.ResponseWriter, r *http.Request) {
	timedLog := volrender.NewTimeLog()
	requestID := fmt.Sprintf("%x", uuid.NewV4().Bytes())
	w.Header().Set("X-Request-Id", requestID)

	req, err := parseImageRequest(c.URLParams)
	if err != nil {
		BadRequest(w, r, err)
		return
	}
	rc := s.catalog.Get(req.dataset)
	if rc == nil {
		NotFound(w, r, errImageNotFound)
		return
	}

	st, frame, err := s.prepare(rc, req)
	if err != nil {
		if errors.Is(err, errImageNotFound) {
			NotFound(w, r, err)
		} else {
			BadRequest(w, r, err)
		}
		return
	}

	if st.onlySave {
		path := filepath.Join(s.saveDir, st.saveFilename+".png")
		if err := s.output.SaveImage(path, frame); err != nil {
			ServerError(w, r, "saving dataset %q to %s: %v", req.dataset, path, err)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "saved")
		timedLog.Infof("HTTP %s: image %s saved to %s, %d x %d, step %d [%s]", r.Method, req.dataset, path,
			frame.Width, frame.Height, st.rendererIndex, requestID)
		return
	}

	data, cached := s.cache.get(req.dataset, frame)
	if !cached {
		var buf bytes.Buffer
		if err := s.output.WritePNG(&buf, frame); err != nil {
			ServerError(w, r, "rendering dataset %q: %v", req.dataset, err)
			return
		}
		data = buf.Bytes()
		s.cache.put(req.dataset, frame, data)
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(data); err != nil {
		volrender.Errorf("writing image for dataset %q: %v\n", req.dataset, err)
		return
	}
	timedLog.Infof("HTTP %s: image %s, %d x %d, step %d, cached %t [%s]", r.Method, req.dataset,
		frame.Width, frame.Height, st.rendererIndex, cached, requestID)
}

// prepare applies the request to the shared dataset state and captures the frame
// to render.  The dataset is locked only while it is modified, so renders of the
// same dataset proceed concurrently.
func (s *Server) prepare(rc *catalog.RenderContext, req *imageRequest) (requestState, render.Frame, error) {
	rc.Lock()
	defer rc.Unlock()

	var st requestState
	if req.options != "" {
		if err := applyDirectives(rc, &st, ParseOptions(req.options)); err != nil {
			return st, render.Frame{}, err
		}
	}
	rc.SetSize(st.rendererIndex, imageSize(rc.MaxSize[st.rendererIndex], req.lowQuality))

	rc.Camera.SetPosition(float64(req.position[0]), float64(req.position[1]), float64(req.position[2]))
	rc.Camera.SetUpVector(req.up[0], req.up[1], req.up[2])
	rc.Camera.SetView(req.view[0], req.view[1], req.view[2])

	return st, rc.Renderers[st.rendererIndex].Frame(), nil
}

// imageSize returns the image size for a quality value.  The quality value is
// also read as a pixel size bounded by the renderer's maximum; values below 1
// select the maximum.  The maximum starts at the descriptor's image size and is
// raised for renderer 0 by "hq,true", which is how hq survives later requests.
func imageSize(max catalog.Size, quality int) catalog.Size {
	switch {
	case quality == LowQuality:
		return catalog.Size{Width: LowQualitySize, Height: LowQualitySize}
	case quality > 0:
		return catalog.Size{Width: minInt(max.Width, quality), Height: minInt(max.Height, quality)}
	default:
		return max
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
