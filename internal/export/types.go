package export

type ExportRequest struct {
	ProjectName string  `json:"project_name"`
	Format      string  `json:"format"`
	FrameRate   float64 `json:"frame_rate"`
	OutputDir   string  `json:"output_dir"`
	Track       int     `json:"track"`
}

type ExportResponse struct {
	Status          string `json:"status"`
	Format          string `json:"format"`
	OutputPath      string `json:"output_path"`
	ClipCount       int    `json:"clip_count"`
	TransitionCount int    `json:"transition_count"`
}
