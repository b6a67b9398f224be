package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/petasbytes/turnloop/internal/fsops"
)

type ListFilesInput struct {
	Path      string `json:"path,omitempty" jsonschema_description:"Optional relative directory to list (defaults to the workspace root)."`
	Recursive bool   `json:"recursive,omitempty" jsonschema_description:"List all nested entries instead of direct children."`
	Page      int    `json:"page,omitempty" jsonschema_description:"1-based page number (default 1)."`
	PageSize  int    `json:"page_size,omitempty" jsonschema_description:"Page size (default 200)."`
}

const (
	defaultListFilesPageSize = 200
	maxWalkEntries           = 5000
)

// ListFiles returns the list_files tool. Output is a JSON array of sorted
// names with directories suffixed by "/"; out-of-range pages yield [].
func ListFiles(sb *fsops.Sandbox) ToolDefinition {
	return ToolDefinition{
		Name:        "list_files",
		Description: "List files and directories under a path within the workspace. Set recursive to walk nested directories.",
		InputSchema: GenerateSchema[ListFilesInput](),
		Function: func(_ context.Context, input json.RawMessage) (any, error) {
			var in ListFilesInput
			if err := Decode(input, &in); err != nil {
				return nil, err
			}
			var (
				names []string
				err   error
			)
			if in.Recursive {
				names, err = sb.Walk(in.Path, maxWalkEntries)
				if errors.Is(err, fsops.ErrLimit) {
					err = nil
				}
			} else {
				names, err = sb.ListDir(in.Path)
			}
			if err != nil {
				return nil, err
			}
			return page(names, in.Page, in.PageSize), nil
		},
	}
}

func page(names []string, pageNum, size int) []string {
	if pageNum <= 0 {
		pageNum = 1
	}
	if size <= 0 {
		size = defaultListFilesPageSize
	}
	// pageNum and size come from the model; bounding pageNum by the page
	// count keeps the product below len(names).
	pages := len(names) / size
	if len(names)%size != 0 {
		pages++
	}
	if pageNum > pages {
		return []string{}
	}
	start := (pageNum - 1) * size
	end := start + min(size, len(names)-start)
	return names[start:end]
}
