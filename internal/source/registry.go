package source

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Source kinds accepted in the sources file.
const (
	KindExec    = "exec"
	KindJSON    = "http-json"
	KindHTML    = "html"
	KindBrowser = "browser"
	KindDemo    = "demo"
)

// Spec declares one source in the sources file.
type Spec struct {
	Name    string    `json:"name"`
	Kind    string    `json:"type"`
	Command string    `json:"command,omitempty"`
	Args    []string  `json:"args,omitempty"`
	URL     string    `json:"url,omitempty"`
	Select  Selectors `json:"selectors,omitempty"`
	Timeout string    `json:"timeout,omitempty"`
	Settle  string    `json:"settle,omitempty"`
}

// LoadSpecs reads a JSON array of Specs from path. File order is
// registration order.
func LoadSpecs(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sources file: %w", err)
	}
	var specs []Spec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parsing sources file %s: %w", path, err)
	}
	return specs, nil
}

// DemoSpecs is the offline source set used when no sources file is configured.
func DemoSpecs() []Spec {
	return []Spec{
		{Name: "Daraz", Kind: KindDemo},
		{Name: "Markaz", Kind: KindDemo},
		{Name: "Web", Kind: KindDemo},
	}
}

// Build turns specs into adapters in the same order. defaultTimeout applies
// to specs without their own timeout.
func Build(specs []Spec, client *Client, defaultTimeout time.Duration) ([]*Adapter, error) {
	adapters := make([]*Adapter, 0, len(specs))
	for i, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("source %d: name is required", i)
		}
		timeout := defaultTimeout
		if s.Timeout != "" {
			d, err := time.ParseDuration(s.Timeout)
			if err != nil {
				return nil, fmt.Errorf("source %s: invalid timeout %q: %w", s.Name, s.Timeout, err)
			}
			timeout = d
		}

		f, err := s.fetcher(client)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", s.Name, err)
		}
		adapters = append(adapters, NewAdapter(s.Name, f, timeout))
	}
	return adapters, nil
}

func (s Spec) fetcher(client *Client) (Fetcher, error) {
	switch s.Kind {
	case KindExec:
		if s.Command == "" {
			return nil, fmt.Errorf("exec source needs a command")
		}
		return NewExec(s.Command, s.Args...), nil
	case KindJSON:
		if s.URL == "" {
			return nil, fmt.Errorf("http-json source needs a url")
		}
		return NewJSONAPI(client, s.URL), nil
	case KindHTML:
		if s.URL == "" {
			return nil, fmt.Errorf("html source needs a url template")
		}
		if err := s.Select.validate(); err != nil {
			return nil, err
		}
		return NewHTML(client, s.URL, s.Select), nil
	case KindBrowser:
		if s.URL == "" {
			return nil, fmt.Errorf("browser source needs a url template")
		}
		if err := s.Select.validate(); err != nil {
			return nil, err
		}
		var settle time.Duration
		if s.Settle != "" {
			d, err := time.ParseDuration(s.Settle)
			if err != nil {
				return nil, fmt.Errorf("invalid settle %q: %w", s.Settle, err)
			}
			settle = d
		}
		return NewBrowser(s.URL, s.Select, settle), nil
	case KindDemo:
		return NewDemo(s.Name), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", s.Kind)
	}
}
