package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vidlang/dve/pkg/catalog"
	"github.com/vidlang/dve/pkg/probeimport"
)

func runAddVideo(args []string) error {
	fs := flag.NewFlagSet("add-video", flag.ExitOnError)
	datastore := fs.String("datastore", "", "local catalog file path (created if missing)")
	key := fs.String("name", "", "catalog key for this video")
	videoPath := fs.String("video-path", "", "path to the media file")
	ffprobeJSON := fs.String("ffprobe-json", "", "path to a pre-captured ffprobe -show_streams -show_frames JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *datastore == "" || *key == "" || *videoPath == "" || *ffprobeJSON == "" {
		return fmt.Errorf("add-video: --datastore, --name, --video-path, and --ffprobe-json are all required")
	}

	var cat *catalog.Memory
	if _, err := os.Stat(*datastore); err == nil {
		cat, err = catalog.LoadFile(*datastore)
		if err != nil {
			return fmt.Errorf("add-video: %w", err)
		}
	} else {
		cat = catalog.NewMemory()
	}

	probeJSON, err := os.ReadFile(*ffprobeJSON)
	if err != nil {
		return fmt.Errorf("add-video: reading ffprobe JSON: %w", err)
	}

	entry, err := probeimport.Import(probeJSON, *key, *videoPath, *ffprobeJSON)
	if err != nil {
		return fmt.Errorf("add-video: importing probe output: %w", err)
	}
	cat.Add(entry)

	if err := cat.SaveFile(*datastore); err != nil {
		return fmt.Errorf("add-video: saving datastore: %w", err)
	}
	return nil
}
