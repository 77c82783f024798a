package api

import (
	"fmt"
	"path"
	"strings"
)

func templateMediaURL(filePath string) string {
	cleaned := strings.TrimLeft(path.Clean("/"+strings.ReplaceAll(filePath, "\\", "/")), "/")
	if cleaned == "" || cleaned == "." {
		return ""
	}
	return "/media/" + cleaned
}

func isActiveTemplateRoute(currentPath string, route string) bool {
	current := strings.TrimSpace(currentPath)
	if current == "" {
		return route == "/"
	}
	if route == "/" {
		return current == "/" || strings.HasPrefix(current, "/?")
	}
	return current == route || strings.HasPrefix(current, route+"?") || strings.HasPrefix(current, route+"/")
}

func templateDict(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("dict requires key-value pairs")
	}
	result := make(map[string]any, len(values)/2)
	for index := 0; index < len(values); index += 2 {
		key, ok := values[index].(string)
		if !ok {
			return nil, fmt.Errorf("dict key at index %d is not a string", index)
		}
		result[key] = values[index+1]
	}
	return result, nil
}

func templateSeq(count int) []int {
	if count <= 0 {
		return nil
	}
	values := make([]int, count)
	for index := range values {
		values[index] = index
	}
	return values
}
