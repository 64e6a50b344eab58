package entity

import (
	"time"

	"github.com/medflow/ocr-service/constants"
)

// BatchProgress tracks a batch task from submission to completion.
type BatchProgress struct {
	TaskID         string               `json:"task_id"`
	Status         constants.TaskStatus `json:"status"`
	FolderPath     string               `json:"folder_path"`
	DeviceType     constants.DeviceType `json:"device_type"`
	TotalFiles     int                  `json:"total_files"`
	ProcessedFiles int                  `json:"processed_files"`
	UniquePatients int                  `json:"unique_patients"`
	Errors         int                  `json:"errors"`
	CurrentFile    string               `json:"current_file,omitempty"`
	Message        string               `json:"message,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	StartedAt      *time.Time           `json:"started_at,omitempty"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
	ExpiresAt      time.Time            `json:"expires_at"`
}

// FolderScanResult summarizes the supported files under a folder.
type FolderScanResult struct {
	FolderPath        string         `json:"folder_path"`
	TotalFiles        int            `json:"total_files"`
	FilesByType       map[string]int `json:"files_by_type"`
	EstimatedPatients int            `json:"estimated_patients"`
	SampleFiles       []string       `json:"sample_files"`
}

// FileEntry is one candidate file for import.
type FileEntry struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Ext     string    `json:"ext"`
	ModTime time.Time `json:"mtime"`
	Size    int64     `json:"size"`
}

// PatientGroup holds the files attributed to one patient key, newest first.
type PatientGroup struct {
	PatientKey     string      `json:"patient_key"`
	Files          []FileEntry `json:"files"`
	TotalFiles     int         `json:"total_files"`
	LatestFileDate time.Time   `json:"latest_file_date"`
}
