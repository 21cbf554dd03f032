package backup

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"
)

// ArchiveInfo contains metadata about a created archive
type ArchiveInfo struct {
	Filename    string
	Path        string
	SizeBytes   int64
	CreatedAt   time.Time
	FileCount   int
	Compression CompressionConfig
}

// Archive writes a zip of every file and directory under worldDir to destFile.
// Entry names are relative to worldDir and use forward slashes.
func Archive(worldDir, destFile string, compression CompressionConfig) (*ArchiveInfo, error) {
	info, err := os.Stat(worldDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat world directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("world path is not a directory: %s", worldDir)
	}

	compression = normalizeCompression(compression)
	log.Printf("[Archive] Creating archive %s from %s", filepath.Base(destFile), worldDir)

	out, err := os.Create(destFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	fileCount, err := writeArchive(out, worldDir, compression)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close archive: %w", closeErr)
	}
	if err != nil {
		os.Remove(destFile)
		return nil, err
	}

	stat, err := os.Stat(destFile)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	archive := &ArchiveInfo{
		Filename:    filepath.Base(destFile),
		Path:        destFile,
		SizeBytes:   stat.Size(),
		CreatedAt:   time.Now(),
		FileCount:   fileCount,
		Compression: compression,
	}
	log.Printf("[Archive] Archive created successfully: %s (size: %d bytes, files: %d)",
		archive.Filename, archive.SizeBytes, archive.FileCount)
	return archive, nil
}

func writeArchive(out io.Writer, root string, compression CompressionConfig) (int, error) {
	zw := zip.NewWriter(out)
	registerCompressor(zw, compression)
	method := zipMethod(compression)

	fileCount := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}

		if d.IsDir() {
			header.Name = name + "/"
			header.Method = zip.Store
			_, err := zw.CreateHeader(header)
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		header.Name = name
		header.Method = method
		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		if err := copyFile(w, path); err != nil {
			return err
		}
		fileCount++
		return nil
	})
	if err != nil {
		zw.Close()
		return 0, fmt.Errorf("failed to archive world: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish archive: %w", err)
	}
	return fileCount, nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// ListArchiveContents returns the entry names of a zip archive.
func ListArchiveContents(archivePath string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	return names, nil
}
