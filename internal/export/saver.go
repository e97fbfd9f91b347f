package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
)

// Saver writes a run to path. Table formats put trades in a sibling file.
type Saver interface {
	Save(run Run, path string) ([]string, error)
	Extension() string
}

// NewSaver returns the saver for format (csv, json, parquet) or nil.
func NewSaver(format string) Saver {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")) {
	case "csv":
		return CSVSaver{}
	case "json":
		return JSONSaver{}
	case "parquet":
		return ParquetSaver{}
	default:
		return nil
	}
}

// Write picks the saver from the file extension and creates parent dirs.
func Write(run Run, path string) ([]string, error) {
	s := NewSaver(filepath.Ext(path))
	if s == nil {
		return nil, fmt.Errorf("unsupported export format %q (use .csv, .json or .parquet)", filepath.Ext(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return s.Save(run, path)
}

// DefaultPath names an export file under dir from the symbol and a short random suffix.
func DefaultPath(dir, symbol, format string) string {
	ext := strings.TrimPrefix(strings.ToLower(format), ".")
	if ext == "" {
		ext = "json"
	}
	name := fmt.Sprintf("%s-%s.%s", strings.ToUpper(symbol), uuid.NewString()[:8], ext)
	return filepath.Join(dir, name)
}

// tradesPath turns run.csv into run.trades.csv.
func tradesPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".trades" + ext
}

type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(run Run, path string) ([]string, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(run Run, path string) ([]string, error) {
	if err := parquet.WriteFile(path, run.Candles); err != nil {
		return nil, fmt.Errorf("write candles: %w", err)
	}
	tp := tradesPath(path)
	if err := parquet.WriteFile(tp, run.Trades); err != nil {
		return nil, fmt.Errorf("write trades: %w", err)
	}
	return []string{path, tp}, nil
}

type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(run Run, path string) ([]string, error) {
	candles := make([][]string, 0, len(run.Candles))
	for _, c := range run.Candles {
		candles = append(candles, []string{
			c.Timestamp,
			floatStr(c.Open),
			floatStr(c.High),
			floatStr(c.Low),
			floatStr(c.Close),
			floatStr(c.Volume),
		})
	}
	if err := writeCSV(path, []string{"timestamp", "open", "high", "low", "close", "volume"}, candles); err != nil {
		return nil, fmt.Errorf("write candles: %w", err)
	}

	trades := make([][]string, 0, len(run.Trades))
	for _, t := range run.Trades {
		trades = append(trades, []string{
			t.EntryTime,
			t.ExitTime,
			t.Side,
			floatStr(t.EntryPrice),
			floatStr(t.ExitPrice),
			floatStr(t.Size),
			floatStr(t.PnL),
		})
	}
	tp := tradesPath(path)
	if err := writeCSV(tp, []string{"entry_time", "exit_time", "side", "entry_price", "exit_price", "size", "pnl"}, trades); err != nil {
		return nil, fmt.Errorf("write trades: %w", err)
	}
	return []string{path, tp}, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return w.Error()
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
