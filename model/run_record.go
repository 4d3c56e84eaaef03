package model

import "time"

// RunRecord is the persisted header of a batch run.
type RunRecord struct {
	ID         string       `gorm:"primaryKey;size:36" json:"id"`
	Preset     string       `gorm:"size:100;index" json:"preset"`
	InputDir   string       `gorm:"size:1024" json:"inputDir"`
	OutputDir  string       `gorm:"size:1024" json:"outputDir"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Files      []FileRecord `gorm:"foreignKey:RunID" json:"files"`
}

// TableName 指定表名
func (RunRecord) TableName() string {
	return "cleaner_runs"
}

// FileRecord is one persisted report entry. Position keeps discovery order.
type FileRecord struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID       string `gorm:"size:36;index" json:"runId"`
	Position    int    `json:"position"`
	FileID      string `gorm:"size:512" json:"fileId"`
	Status      string `gorm:"size:20" json:"status"`
	Detail      string `gorm:"type:text" json:"detail"`
	FailedStage int    `json:"failedStage"`
	OutputPath  string `gorm:"size:1024" json:"outputPath"`
	ElapsedMs   int64  `json:"elapsedMs"`
}

// TableName 指定表名
func (FileRecord) TableName() string {
	return "cleaner_run_files"
}
