package intent

import (
	_ "embed"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed vocab.yaml
var vocabYAML []byte

// vocabulary is the data side of keyword detection. It lives in vocab.yaml so
// phrases can be added or retired without touching control flow.
type vocabulary struct {
	Version  int      `yaml:"version"`
	LongForm []string `yaml:"long_form"`
	Academic []string `yaml:"academic"`
}

var (
	vocabOnce sync.Once
	vocab     vocabulary
	vocabErr  error
)

// loadVocab parses the embedded vocabulary exactly once and lowercases every
// phrase so matching stays case-insensitive.
func loadVocab() (vocabulary, error) {
	vocabOnce.Do(func() {
		var v vocabulary
		if err := yaml.Unmarshal(vocabYAML, &v); err != nil {
			vocabErr = err
			return
		}
		for i, p := range v.LongForm {
			v.LongForm[i] = strings.ToLower(p)
		}
		for i, p := range v.Academic {
			v.Academic[i] = strings.ToLower(p)
		}
		vocab = v
	})
	return vocab, vocabErr
}

// matchesAny reports whether text contains any of the given phrases.
// text must already be lowercased.
func matchesAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
