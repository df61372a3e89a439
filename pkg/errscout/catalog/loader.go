package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/errscout/pkg/errscout/taxonomy"
)

// fileCatalog is the on-disk catalog shape.
type fileCatalog struct {
	Services []fileService `yaml:"services"`
}

type fileService struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Operations  []fileOperation `yaml:"operations"`
}

type fileOperation struct {
	Name           string      `yaml:"name"`
	Method         string      `yaml:"method"`
	Path           string      `yaml:"path"`
	Summary        string      `yaml:"summary"`
	Params         []fileParam `yaml:"params"`
	ExpectedErrors []string    `yaml:"expected_errors"`
}

type fileParam struct {
	Name        string `yaml:"name"`
	In          string `yaml:"in"`
	Type        string `yaml:"type"`
	Required    bool   `yaml:"required"`
	Description string `yaml:"description"`
}

// FromFile loads a catalog from a YAML file.
func FromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return FromYAML(data)
}

// FromYAML parses a catalog document:
//
//	services:
//	  - name: KV
//	    operations:
//	      - name: getValue
//	        method: GET
//	        path: /accounts/{account_id}/storage/kv/namespaces/{namespace_id}/values/{key_name}
//	        params:
//	          - {name: namespace_id, in: path, type: string, required: true}
//	        expected_errors: [AuthenticationError, NotFoundError]
func FromYAML(data []byte) (*Catalog, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}

	c := New()
	for _, fs := range fc.Services {
		if err := c.AddService(fs.Name, fs.Description); err != nil {
			return nil, err
		}
		for _, fo := range fs.Operations {
			op, err := fo.operation(fs.Name)
			if err != nil {
				return nil, err
			}
			if err := c.AddOperation(op); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func (fo fileOperation) operation(serviceName string) (Operation, error) {
	op := Operation{
		Service: serviceName,
		Name:    fo.Name,
		Method:  fo.Method,
		Path:    fo.Path,
		Summary: fo.Summary,
	}

	for _, fp := range fo.Params {
		loc := Location(fp.In)
		switch loc {
		case InPath, InQuery, InBody:
		case "":
			loc = InBody
		default:
			return Operation{}, fmt.Errorf("%s.%s: param %s has unknown location %q", serviceName, fo.Name, fp.Name, fp.In)
		}
		typ := fp.Type
		if typ == "" {
			typ = "string"
		}
		op.Params = append(op.Params, Param{
			Name:        fp.Name,
			In:          loc,
			Type:        typ,
			Required:    fp.Required,
			Description: fp.Description,
		})
	}

	for _, tag := range fo.ExpectedErrors {
		cat, ok := taxonomy.ParseTag(tag)
		if !ok || cat.IsTransport() {
			return Operation{}, fmt.Errorf("%s.%s: unknown error tag %q", serviceName, fo.Name, tag)
		}
		op.ExpectedErrors = append(op.ExpectedErrors, cat)
	}
	return op, nil
}
