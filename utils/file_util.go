package utils

import (
	"archive/zip"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aistock/tdxdata/errs"
	"github.com/xuri/excelize/v2"
)

func Exists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

func EnsureDir(dir string, perm os.FileMode) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, perm)
	}
	return nil
}

func WriteCsvFile(path string, rows [][]string, compress bool) *errs.Error {
	var fileWriter io.Writer
	if compress {
		zipFile, err_ := os.Create(strings.Replace(path, ".csv", ".zip", 1))
		if err_ != nil {
			return errs.New(errs.CodeIOWriteFail, err_)
		}
		zipWriter := zip.NewWriter(zipFile)
		defer zipWriter.Close()
		header := &zip.FileHeader{
			Name:     filepath.Base(path),
			Method:   zip.Deflate,
			Modified: time.Now(),
		}
		var err error
		fileWriter, err = zipWriter.CreateHeader(header)
		if err != nil {
			return errs.New(errs.CodeIOWriteFail, err)
		}
	} else {
		file, err_ := os.Create(path)
		if err_ != nil {
			return errs.New(errs.CodeIOWriteFail, err_)
		}
		defer file.Close()
		fileWriter = file
	}
	writer := csv.NewWriter(fileWriter)
	defer writer.Flush()
	err_ := writer.WriteAll(rows)
	if err_ != nil {
		return errs.New(errs.CodeIOWriteFail, err_)
	}
	return nil
}

/*
WriteXlsxFile 写xlsx文件，rows首行作为表头
*/
func WriteXlsxFile(path, sheet string, rows [][]interface{}) *errs.Error {
	if sheet == "" {
		sheet = "Sheet1"
	}
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return errs.New(errs.CodeIOWriteFail, err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errs.New(errs.CodeIOWriteFail, err)
		}
		if err = f.SetSheetRow(sheet, cell, &row); err != nil {
			return errs.New(errs.CodeIOWriteFail, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return errs.New(errs.CodeIOWriteFail, err)
	}
	return nil
}
