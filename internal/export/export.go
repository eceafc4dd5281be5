package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultProjectName is used when the requested name sanitizes to nothing.
const DefaultProjectName = "transitiond_export"

// ErrInvalidRequest wraps every rejection of the request itself.
var ErrInvalidRequest = errors.New("invalid export request")

// Write validates req, renders seq as an EDL and stores it as
// <project>.edl in req.OutputDir.
func Write(seq Sequence, req ExportRequest) (*ExportResponse, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = "edl"
	}
	if format != "edl" {
		return nil, fmt.Errorf("%w: format must be edl", ErrInvalidRequest)
	}
	if err := ValidateOutputDir(req.OutputDir); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	projectName := SanitizeName(req.ProjectName, 120)
	if projectName == "" {
		projectName = DefaultProjectName
	}

	frameRate := req.FrameRate
	if frameRate <= 0 {
		frameRate = 30.0
	}

	res := GenerateEDL(seq, req.Track, projectName, frameRate)
	outputPath := filepath.Join(req.OutputDir, projectName+".edl")
	if err := os.WriteFile(outputPath, []byte(res.Text), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write export file: %w", err)
	}

	return &ExportResponse{
		Status:          "ok",
		Format:          format,
		OutputPath:      outputPath,
		ClipCount:       res.Clips,
		TransitionCount: res.Transitions,
	}, nil
}
