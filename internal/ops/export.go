package ops

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

// Export formats
const (
	ExportJSONL = "jsonl"
	ExportXLSX  = "xlsx"
)

const exportSheet = "Applications"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Account string
	Path    string // optional, default: <base>/exports/<account>-<timestamp>.<format>
	Format  string // jsonl or xlsx; inferred from Path when empty
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Format     string `json:"format"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL export.
type ExportHeader struct {
	JobtrackerExport bool   `json:"_jobtracker_export"`
	SchemaVersion    string `json:"schema_version"`
	Account          string `json:"account"`
	ExportedAt       int64  `json:"exported_at"`
}

// Export writes every application of an account to a JSONL or XLSX file.
// The file is written to a temp name and renamed into place, so a failed
// export never clobbers an earlier one.
func Export(ctx context.Context, database *sql.DB, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	now := time.Now()
	acct := account(cfg, input.Account)

	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" && input.Path != "" {
		format = exportExtensions[strings.ToLower(filepath.Ext(input.Path))]
	}
	if format == "" {
		format = ExportJSONL
	}
	if format != ExportJSONL && format != ExportXLSX {
		return nil, errors.NewInvalidRequest("format must be jsonl or xlsx")
	}

	exportPath := input.Path
	if exportPath == "" {
		dir, err := exportsDir(cfg)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%s-%s.%s", SanitizeForFilename(acct), now.Format("2006-01-02T150405"), format)
		exportPath = filepath.Join(dir, name)
	} else if exportExtensions[strings.ToLower(filepath.Ext(exportPath))] != format {
		return nil, errors.NewInvalidRequest("path extension does not match format " + format)
	}

	if err := ValidateExportPath(exportPath, cfg); err != nil {
		return nil, err
	}

	apps, err := db.AllApplications(ctx, database, acct)
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("export")
	}

	write := func(w io.Writer) error { return writeJSONL(w, acct, now.Unix(), apps) }
	if format == ExportXLSX {
		write = func(w io.Writer) error { return writeXLSX(w, apps) }
	}
	if err := writeAtomic(exportPath, write); err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:       exportPath,
		Format:     format,
		Count:      len(apps),
		ExportedAt: now.Unix(),
	}, nil
}

func exportsDir(cfg *config.Config) (string, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	dir, err := cfg.ExportsDir()
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return dir, nil
}

func writeJSONL(w io.Writer, acct string, exportedAt int64, apps []tracker.Application) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(ExportHeader{
		JobtrackerExport: true,
		SchemaVersion:    "1.0",
		Account:          acct,
		ExportedAt:       exportedAt,
	}); err != nil {
		return err
	}
	for _, app := range apps {
		if err := enc.Encode(app); err != nil {
			return err
		}
	}
	return nil
}

func writeXLSX(w io.Writer, apps []tracker.Application) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return err
	}
	headers := []string{
		"Company", "Position", "Status", "Rejection Stage", "Applied",
		"Last Update", "Salary Range", "Recruiter", "URL", "Notes",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return err
		}
	}

	for i, a := range apps {
		row := i + 2
		stage := ""
		if a.RejectionStage != "" {
			stage = a.RejectionStage.Label()
		}
		applied := ""
		if a.AppliedAt != 0 {
			applied = formatDate(a.AppliedAt)
		}
		values := []any{
			a.Company, a.Position, a.Status.Label(), stage, applied,
			formatDate(a.UpdatedAt), a.SalaryRange, a.RecruiterContact, a.URL, a.Notes,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return err
			}
		}
	}

	_ = f.SetColWidth(exportSheet, "A", "B", 28)
	_ = f.SetColWidth(exportSheet, "C", "D", 18)
	_ = f.SetColWidth(exportSheet, "E", "F", 12)
	_ = f.SetColWidth(exportSheet, "G", "I", 24)
	_ = f.SetColWidth(exportSheet, "J", "J", 60)

	return f.Write(w)
}

// writeAtomic writes to a temp file beside path and renames it into place.
func writeAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := createExportTemp(tempPath)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return err
		}
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := write(file); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}
