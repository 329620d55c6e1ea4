package service

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/inbo/vespa-db-sub000/internal/domains/export/model"
)

// rowWriter renders one export artifact.
type rowWriter interface {
	Write(record []string) error
	Bytes() ([]byte, error)
}

func newRowWriter(format model.Format) (rowWriter, error) {
	switch format {
	case model.FormatCSV:
		w := &csvWriter{}
		w.w = csv.NewWriter(&w.buf)
		return w, nil
	case model.FormatXLSX:
		return newXLSXWriter()
	}
	return nil, fmt.Errorf("%w: unsupported format %q", model.ErrInvalidExport, format)
}

type csvWriter struct {
	buf bytes.Buffer
	w   *csv.Writer
}

func (c *csvWriter) Write(record []string) error {
	return c.w.Write(record)
}

func (c *csvWriter) Bytes() ([]byte, error) {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return nil, err
	}
	return c.buf.Bytes(), nil
}

const sheetName = "Observations"

type xlsxWriter struct {
	f      *excelize.File
	sw     *excelize.StreamWriter
	row    int
	header int
}

func newXLSXWriter() (*xlsxWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return nil, err
	}
	return &xlsxWriter{f: f, sw: sw, header: header}, nil
}

// Write appends a row; the first row written is styled as header.
func (x *xlsxWriter) Write(record []string) error {
	x.row++
	cells := make([]interface{}, len(record))
	for i, v := range record {
		if x.row == 1 {
			cells[i] = excelize.Cell{StyleID: x.header, Value: v}
			continue
		}
		cells[i] = v
	}

	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	return x.sw.SetRow(cell, cells)
}

func (x *xlsxWriter) Bytes() ([]byte, error) {
	defer x.f.Close()

	if err := x.sw.Flush(); err != nil {
		return nil, err
	}
	buf, err := x.f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
