// Command openapi-compat fails when an API revision breaks clients of a base spec.
// Without -revision it checks the spec compiled into this build.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"kinship/docs"

	"gopkg.in/yaml.v3"
)

var methods = []string{"get", "put", "post", "delete", "patch", "head", "options"}

type parameter struct {
	Name     string `yaml:"name"`
	In       string `yaml:"in"`
	Required bool   `yaml:"required"`
}

type operation struct {
	Parameters []parameter    `yaml:"parameters"`
	Responses  map[string]any `yaml:"responses"`
}

type document struct {
	Paths map[string]map[string]operation `yaml:"paths"`
}

func main() {
	basePath := flag.String("base", "", "base swagger.yaml or swagger.json")
	revisionPath := flag.String("revision", "", "revision spec; defaults to the built-in docs")
	flag.Parse()

	if strings.TrimSpace(*basePath) == "" {
		fmt.Fprintln(os.Stderr, "usage: openapi-compat -base <path> [-revision <path>]")
		os.Exit(2)
	}

	base, err := loadFile(*basePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load base spec: %v\n", err)
		os.Exit(1)
	}
	var revision document
	if *revisionPath == "" {
		revision, err = parse([]byte(docs.SwaggerInfo.ReadDoc()))
	} else {
		revision, err = loadFile(*revisionPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load revision spec: %v\n", err)
		os.Exit(1)
	}

	if issues := compare(base, revision); len(issues) > 0 {
		fmt.Fprintln(os.Stderr, "backward compatibility check failed:")
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "- %s\n", issue)
		}
		os.Exit(1)
	}
	fmt.Println("openapi compatibility check passed")
}

func loadFile(path string) (document, error) {
	// #nosec G304: path comes from CLI flags in a dev tool
	raw, err := os.ReadFile(path)
	if err != nil {
		return document{}, err
	}
	return parse(raw)
}

// parse accepts YAML or JSON; JSON is a subset of YAML.
func parse(raw []byte) (document, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return document{}, err
	}
	if doc.Paths == nil {
		return document{}, fmt.Errorf("missing top-level paths field")
	}
	return doc, nil
}

func required(op operation) map[string]bool {
	out := make(map[string]bool)
	for _, p := range op.Parameters {
		if p.Required {
			out[p.In+":"+p.Name] = true
		}
	}
	return out
}

// compare lists removed paths, operations and response codes, plus
// parameters that became required.
func compare(base, revision document) []string {
	var issues []string
	for path, baseOps := range base.Paths {
		revOps, ok := revision.Paths[path]
		if !ok {
			issues = append(issues, "removed path: "+path)
			continue
		}
		for _, method := range methods {
			baseOp, ok := baseOps[method]
			if !ok {
				continue
			}
			name := strings.ToUpper(method) + " " + path
			revOp, ok := revOps[method]
			if !ok {
				issues = append(issues, "removed operation: "+name)
				continue
			}
			for code := range baseOp.Responses {
				if _, ok := revOp.Responses[code]; !ok {
					issues = append(issues, fmt.Sprintf("removed response code: %s -> %s", name, code))
				}
			}
			before := required(baseOp)
			for key := range required(revOp) {
				if !before[key] {
					issues = append(issues, fmt.Sprintf("new required parameter: %s -> %s", name, key))
				}
			}
		}
	}
	sort.Strings(issues)
	return issues
}
