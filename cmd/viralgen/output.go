// cmd/viralgen/output.go
package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Corphon/ViralGen/internal/display"
	"github.com/Corphon/ViralGen/internal/models"
	"github.com/Corphon/ViralGen/internal/services"
)

type generationOutput struct {
	*services.GenerationResult
	Groups []display.Group `json:"groups"`
}

type extractionOutput struct {
	Result models.StructuredResult `json:"result"`
	Groups []display.Group         `json:"groups"`
	Report models.ExtractionReport `json:"report"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeGroups(w io.Writer, groups []display.Group, report models.ExtractionReport) error {
	r := display.NewRenderer(w)
	if _, err := fmt.Fprint(w, r.Render(groups)); err != nil {
		return err
	}
	if note := r.RenderReport(report); note != "" {
		_, err := fmt.Fprintln(w, "\n"+note)
		return err
	}
	return nil
}
