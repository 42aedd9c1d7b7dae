package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/vbonduro/ilmigreen/internal/detect"
	"github.com/vbonduro/ilmigreen/internal/domain"
	"github.com/vbonduro/ilmigreen/internal/upstream"
)

const (
	maxTextLen = 1000

	// A base64 data URL of a maxPhotoSize image plus the JSON around it.
	maxDetectBody = maxPhotoSize*4/3 + 64*1024
)

const (
	msgRateLimited      = "Terlalu banyak permintaan. Silakan coba lagi nanti."
	msgCreditsExhausted = "Kredit habis. Silakan hubungi administrator."
	msgDetectFailed     = "Terjadi kesalahan saat mendeteksi sampah"
	msgImageTooLarge    = "Ukuran file maksimal 5MB"
	msgImageUnsupported = "Format gambar tidak didukung"
	msgImageRequired    = "Silakan upload gambar terlebih dahulu"
	msgTextRequired     = "Silakan masukkan deskripsi sampah"
	msgTextTooLong      = "Deskripsi sampah terlalu panjang"
)

// requestError is a client mistake reported with its own status and message.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) *requestError {
	return &requestError{status: http.StatusBadRequest, msg: msg}
}

// detectFailure maps a detection error to the status and message shown to
// the user.
func detectFailure(err error) (int, string) {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, reqErr.msg
	case errors.Is(err, upstream.ErrRateLimited):
		return http.StatusTooManyRequests, msgRateLimited
	case errors.Is(err, upstream.ErrCreditsExhausted):
		return http.StatusPaymentRequired, msgCreditsExhausted
	case errors.Is(err, detect.ErrEmptyInput):
		return http.StatusBadRequest, msgTextRequired
	default:
		return http.StatusInternalServerError, msgDetectFailed
	}
}

func checkImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", badRequest(msgImageRequired)
	}
	if len(data) > maxPhotoSize {
		return "", &requestError{status: http.StatusRequestEntityTooLarge, msg: msgImageTooLarge}
	}
	mimeType, ok := allowedImageMIME(data)
	if !ok {
		return "", badRequest(msgImageUnsupported)
	}
	return mimeType, nil
}

func checkText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", badRequest(msgTextRequired)
	}
	if utf8.RuneCountInString(text) > maxTextLen {
		return "", badRequest(msgTextTooLong)
	}
	return text, nil
}

// runDetection validates in and hands it to the waste service.
func (s *Server) runDetection(r *http.Request, in detect.Input) (*domain.Detection, error) {
	switch in.Kind {
	case domain.InputImage:
		mimeType, err := checkImage(in.ImageData)
		if err != nil {
			return nil, err
		}
		return s.waste.DetectImage(r.Context(), in.ImageData, mimeType)
	case domain.InputText:
		text, err := checkText(in.Text)
		if err != nil {
			return nil, err
		}
		return s.waste.DetectText(r.Context(), text)
	default:
		return nil, badRequest("jenis input tidak dikenal")
	}
}

// readDetectForm reads the index page form: an "image" file, or a "text"
// field when no file was attached.
func (s *Server) readDetectForm(r *http.Request) (detect.Input, error) {
	// Leave room for the multipart framing around a maximum-size photo.
	if err := r.ParseMultipartForm(maxPhotoSize + 1024*1024); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return detect.Input{}, &requestError{status: http.StatusRequestEntityTooLarge, msg: msgImageTooLarge}
		}
		return detect.Input{}, badRequest("gagal membaca formulir")
	}

	kind := domain.InputKind(r.FormValue("type"))
	if kind == "" {
		kind = domain.InputText
		if r.MultipartForm != nil && len(r.MultipartForm.File["image"]) > 0 {
			kind = domain.InputImage
		}
	}

	if kind != domain.InputImage {
		return detect.Input{Kind: kind, Text: r.FormValue("text")}, nil
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return detect.Input{}, badRequest(msgImageRequired)
	}
	defer closeWithLog(file, "upload file", s.logger)

	// One byte past the limit is enough to know the photo is too large.
	data, err := io.ReadAll(io.LimitReader(file, maxPhotoSize+1))
	if err != nil {
		return detect.Input{}, err
	}
	return detect.Input{Kind: domain.InputImage, ImageData: data}, nil
}

func (s *Server) handleDetectForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize+2*1024*1024)

	in, err := s.readDetectForm(r)
	if err == nil {
		var d *domain.Detection
		d, err = s.runDetection(r, in)
		if err == nil {
			if err := s.renderPartial(w, "partials/detection_result.html", d); err != nil {
				s.logger.Error("render partial failed", "error", err)
			}
			return
		}
	}

	status, msg := detectFailure(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("detection failed", "kind", in.Kind, "error", err)
	}
	http.Error(w, msg, status)
}

type detectRequest struct {
	Input string           `json:"input"`
	Type  domain.InputKind `json:"type"`
}

type detectResponse struct {
	Category    domain.Category `json:"jenis"`
	Explanation string          `json:"penjelasan"`
	Tips        string          `json:"tips"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleDetectAPI accepts {"input","type"} where input is a base64 data URL
// for images or the description for text.
func (s *Server) handleDetectAPI(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDetectBody)

	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: msgImageTooLarge})
			return
		}
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "permintaan tidak valid"})
		return
	}

	in := detect.Input{Kind: req.Type}
	switch req.Type {
	case domain.InputImage:
		data, err := decodeDataURL(req.Input)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msgImageUnsupported})
			return
		}
		in.ImageData = data
	default:
		in.Text = req.Input
	}

	d, err := s.runDetection(r, in)
	if err != nil {
		status, msg := detectFailure(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("detection failed", "kind", req.Type, "error", err)
		}
		s.writeJSON(w, status, errorResponse{Error: msg})
		return
	}

	s.writeJSON(w, http.StatusOK, detectResponse{
		Category:    d.Category,
		Explanation: d.Explanation,
		Tips:        d.Tips,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write json failed", "error", err)
	}
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
