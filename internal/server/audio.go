// Copyright 2025 AI Gateway Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/ai-gateway/internal/resilience"
	"github.com/your-org/ai-gateway/internal/speech"
)

type transcribeRequest struct {
	STTProvider string         `json:"stt_provider"`
	Locale      string         `json:"locale"`
	Model       string         `json:"model"`
	AudioBase64 string         `json:"audio_base64"`
	Options     map[string]any `json:"options,omitempty"`
}

// handleTranscribe accepts base64 audio in a JSON body
func (s *Server) handleTranscribe(c *gin.Context) {
	started := time.Now()
	var reqErr error
	defer func() {
		s.stats.Record(float64(time.Since(started).Microseconds())/1000, reqErr)
	}()

	var body transcribeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		reqErr = resilience.NewBadRequestError("invalid transcription request: "+err.Error(), err)
		s.respondError(c, reqErr)
		return
	}
	if err := speech.ValidateOptions(body.Options); err != nil {
		reqErr = err
		s.respondError(c, err)
		return
	}

	var audio []byte
	if body.AudioBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(body.AudioBase64)
		if err != nil {
			reqErr = resilience.NewBadRequestError("audio_base64 is not valid base64", err)
			s.respondError(c, reqErr)
			return
		}
		audio = decoded
	}

	req := speech.RequestFromOptions(body.Options)
	if body.STTProvider != "" {
		req.Provider = body.STTProvider
	}
	if body.Locale != "" {
		req.Language = body.Locale
	}
	if body.Model != "" {
		req.Model = body.Model
	}

	result, err := s.speech.Transcribe(c.Request.Context(), audio, req)
	if err != nil {
		reqErr = err
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":            true,
		"text":          result.Text,
		"segments":      result.Segments,
		"provider_used": result.Provider,
		"mode":          result.Mode,
		"timing_ms":     result.TimingMS,
	})
}

// handleTranscribeFile accepts a multipart audio upload. Overrides come
// from the settings form field (a JSON object) with query parameters
// taking precedence.
func (s *Server) handleTranscribeFile(c *gin.Context) {
	started := time.Now()
	var reqErr error
	defer func() {
		s.stats.Record(float64(time.Since(started).Microseconds())/1000, reqErr)
	}()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		reqErr = resilience.NewBadRequestError("missing file upload", err)
		s.respondError(c, reqErr)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		reqErr = resilience.NewBadRequestError("failed to open upload", err)
		s.respondError(c, reqErr)
		return
	}
	defer func() { _ = file.Close() }()

	raw, err := io.ReadAll(file)
	if err != nil {
		reqErr = resilience.NewBadRequestError("failed to read upload", err)
		s.respondError(c, reqErr)
		return
	}
	if len(raw) == 0 {
		reqErr = resilience.NewBadRequestError("empty audio file uploaded", nil)
		s.respondError(c, reqErr)
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	s.logger.Info("Received audio upload",
		zap.String("filename", fileHeader.Filename),
		zap.String("content_type", contentType),
		zap.Int("bytes", len(raw)),
	)

	req, err := s.parseTranscribeOverrides(c)
	if err != nil {
		reqErr = err
		s.respondError(c, err)
		return
	}

	decodeStart := time.Now()
	wav, convertMS, format, err := ensureWAV(raw, contentType)
	if err != nil {
		reqErr = err
		s.respondError(c, err)
		return
	}
	decodeMS := float64(time.Since(decodeStart).Microseconds()) / 1000

	result, err := s.speech.Transcribe(c.Request.Context(), wav, req)
	if err != nil {
		reqErr = err
		s.respondError(c, err)
		return
	}

	totalMS := float64(time.Since(started).Microseconds()) / 1000
	transcribeMS := result.TimingMS["transcribe"]

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"text":     result.Text,
		"segments": result.Segments,
		"timing_ms": gin.H{
			"total":         round2(totalMS),
			"transcribe":    round2(transcribeMS),
			"convert":       round2(convertMS),
			"decode":        round2(decodeMS),
			"audio_seconds": round2(float64(len(wav)) / (16000 * 2)),
		},
		"settings_used": gin.H{
			"provider":   req.Provider,
			"language":   req.Language,
			"model":      req.Model,
			"beam_size":  req.BeamSize,
			"vad_filter": req.VADFilter,
		},
		"provider_used":  result.Provider,
		"mode":           result.Mode,
		"filename":       fileHeader.Filename,
		"format":         format,
		"correlation_id": s.correlationID(c),
	})
}

// parseTranscribeOverrides merges the settings form field and query
// parameters into a speech request
func (s *Server) parseTranscribeOverrides(c *gin.Context) (speech.Request, error) {
	req := speech.Request{Provider: speech.ProviderAuto, BeamSize: 1}

	if settings := c.PostForm("settings"); settings != "" {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(settings), &parsed); err != nil {
			return req, resilience.NewBadRequestError("invalid settings JSON: "+err.Error(), err)
		}
		if err := speech.ValidateOptions(parsed); err != nil {
			return req, err
		}
		fromSettings := speech.RequestFromOptions(parsed)
		if fromSettings.Provider != "" {
			req.Provider = fromSettings.Provider
		}
		if fromSettings.Language != "" {
			req.Language = fromSettings.Language
		}
		if fromSettings.Model != "" {
			req.Model = fromSettings.Model
		}
		if fromSettings.BeamSize > 0 {
			req.BeamSize = fromSettings.BeamSize
		}
		req.VADFilter = fromSettings.VADFilter
	}

	if v, ok := c.GetQuery("provider"); ok && v != "" {
		req.Provider = v
	}
	if v, ok := c.GetQuery("language"); ok && v != "" {
		req.Language = v
	}
	if v, ok := c.GetQuery("model"); ok && v != "" {
		req.Model = v
	}
	if v, ok := c.GetQuery("beam_size"); ok {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 5 {
			return req, resilience.NewBadRequestError("beam_size must be an integer between 1 and 5", err)
		}
		req.BeamSize = parsed
	}
	if v, ok := c.GetQuery("vad"); ok {
		req.VADFilter = v == "true" || v == "1"
	}
	return req, nil
}

// handleTranscribeConfig reports the tunable transcription surface
func (s *Server) handleTranscribeConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":     []string{"tiny", "small", "medium"},
		"languages":  []string{"fi", "en", "auto"},
		"beam_size":  gin.H{"min": 1, "max": 5, "default": 1},
		"vad_filter": gin.H{"supported": true, "default": false},
		"notes": gin.H{
			"cpu_latency": "Medium model may run slowly on laptops; start with tiny/small for demos.",
		},
	})
}

type synthesizeRequest struct {
	TTSProvider string `json:"tts_provider"`
	Text        string `json:"text" binding:"required"`
	Locale      string `json:"locale"`
	Voice       string `json:"voice"`
}

// handleSynthesize runs text to speech on the selected provider
func (s *Server) handleSynthesize(c *gin.Context) {
	started := time.Now()
	var reqErr error
	defer func() {
		s.stats.Record(float64(time.Since(started).Microseconds())/1000, reqErr)
	}()

	var body synthesizeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		reqErr = resilience.NewBadRequestError("invalid synthesis request: "+err.Error(), err)
		s.respondError(c, reqErr)
		return
	}
	if body.TTSProvider == "" {
		body.TTSProvider = "mock-tts"
	}
	if body.Locale == "" {
		body.Locale = "en-US"
	}

	result, err := s.orch.Synthesize(c.Request.Context(), body.TTSProvider, body.Text, body.Locale, body.Voice)
	if err != nil {
		reqErr = err
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"audio_base64": base64.StdEncoding.EncodeToString(result.Audio),
		"mime_type":    result.MimeType,
		"provider":     result.Provider,
		"voice":        result.Voice,
		"timing_ms":    result.TimingMS,
	})
}

// handleSTTStatus reports the speech failover state
func (s *Server) handleSTTStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.speech.Status())
}

// ensureWAV passes WAV uploads through untouched and converts webm and
// ogg via ffmpeg. Other formats are rejected.
func ensureWAV(audio []byte, contentType string) ([]byte, float64, string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	switch contentType {
	case "audio/wav", "audio/wave", "audio/x-wav":
		return audio, 0, "wav", nil
	case "audio/webm", "audio/ogg":
		wav, convertMS, err := convertWithFFmpeg(audio, contentType)
		if err != nil {
			return nil, 0, "", err
		}
		return wav, convertMS, "wav", nil
	}
	return nil, 0, "", resilience.NewBadRequestError(
		fmt.Sprintf("unsupported format %s. Supported: audio/wav, audio/webm, audio/ogg (conversion).", contentType), nil)
}

func convertWithFFmpeg(audio []byte, contentType string) ([]byte, float64, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, 0, resilience.NewServiceError(
			"ffmpeg is required to convert audio/webm or audio/ogg",
			resilience.ErrorCodeInternalError, http.StatusInternalServerError, err)
	}

	start := time.Now()
	tmpDir, err := os.MkdirTemp("", "gateway-audio-")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	inputPath := filepath.Join(tmpDir, "input"+guessExtension(contentType))
	outputPath := filepath.Join(tmpDir, "output.wav")
	if err := os.WriteFile(inputPath, audio, 0o600); err != nil {
		return nil, 0, fmt.Errorf("failed to write input audio: %w", err)
	}

	cmd := exec.Command("ffmpeg", "-y", "-i", inputPath, "-ac", "1", "-ar", "16000", "-f", "wav", outputPath)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 500 {
			detail = detail[:500]
		}
		return nil, 0, resilience.NewServiceError(
			"ffmpeg conversion failed: "+detail,
			resilience.ErrorCodeInternalError, http.StatusInternalServerError, err)
	}

	wav, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read converted audio: %w", err)
	}
	return wav, float64(time.Since(start).Microseconds()) / 1000, nil
}

func guessExtension(contentType string) string {
	switch contentType {
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	}
	return ".bin"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
