package utils

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"go.dedis.ch/onet/v3/log"
)

// DevFraction of train carved out as dev split when a dataset ships without dev.txt
const DevFraction = 0.1

// FileLoader reads <Dir>/<name>/{train,dev,test}.txt, one "label<TAB>text" sample per line.
// MaxLen > 0 truncates every sequence to MaxLen tokens.
type FileLoader struct {
	Dir    string
	MaxLen int
}

type sample struct {
	label  string
	tokens []string
}

// Load implements Loader
func (l *FileLoader) Load(name string) (*Corpus, error) {
	dir := filepath.Join(l.Dir, name)

	train, err := loadFile(filepath.Join(dir, "train.txt"))
	if err != nil {
		return nil, err
	}
	test, err := loadFile(filepath.Join(dir, "test.txt"))
	if err != nil {
		return nil, err
	}
	dev, err := loadFile(filepath.Join(dir, "dev.txt"))
	splitDev := false
	if errors.Is(err, os.ErrNotExist) {
		log.Lvl2("no dev split for", name, "- using the last", DevFraction, "of train")
		splitDev = true
	} else if err != nil {
		return nil, err
	}

	return buildCorpus(train, dev, test, l.MaxLen, splitDev)
}

// loadFile loads the labelled samples of fname
func loadFile(fname string) ([]sample, error) {
	file, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var output []sample
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts := strings.SplitN(text, "\t", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s:%d: expected \"label<TAB>text\"", fname, line)
		}
		output = append(output, sample{
			label:  strings.TrimSpace(parts[0]),
			tokens: Tokenize(parts[1]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", fname, err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("%s: no samples", fname)
	}
	return output, nil
}

// Tokenize lowercases s and splits it on anything that is not a letter or a digit
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func buildCorpus(train, dev, test []sample, capLen int, splitDev bool) (*Corpus, error) {
	splits := [][]sample{train, dev, test}

	labelSet := make(map[string]struct{})
	vocab := make(map[string]int)
	maxLen := 0
	for _, split := range splits {
		for _, s := range split {
			labelSet[s.label] = struct{}{}
			for _, tok := range s.tokens {
				if _, ok := vocab[tok]; !ok {
					vocab[tok] = len(vocab) + 1 // 0 is padding
				}
			}
			if len(s.tokens) > maxLen {
				maxLen = len(s.tokens)
			}
		}
	}
	if capLen > 0 && maxLen > capLen {
		maxLen = capLen
	}
	if maxLen == 0 {
		return nil, errors.New("all samples are empty")
	}

	classes := make([]string, 0, len(labelSet))
	for l := range labelSet {
		classes = append(classes, l)
	}
	sort.Strings(classes)
	if len(classes) < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", len(classes))
	}
	classIdx := make(map[string]int, len(classes))
	for i, c := range classes {
		classIdx[c] = i
	}

	convert := func(split []sample) (Dataset, error) {
		tokens := make([][]int, len(split))
		labels := make([]int, len(split))
		for i, s := range split {
			tokens[i] = make([]int, len(s.tokens))
			for j, tok := range s.tokens {
				tokens[i][j] = vocab[tok]
			}
			labels[i] = classIdx[s.label]
		}
		return NewDataset(tokens, labels, maxLen, len(classes))
	}

	corpus := &Corpus{
		VocabSize: len(vocab) + 1,
		MaxLen:    maxLen,
		Classes:   classes,
	}
	var err error
	if corpus.Train, err = convert(train); err != nil {
		return nil, fmt.Errorf("train split: %w", err)
	}
	if corpus.Test, err = convert(test); err != nil {
		return nil, fmt.Errorf("test split: %w", err)
	}
	if splitDev {
		corpus.Train, corpus.Dev, err = corpus.Train.Partition(DevFraction)
	} else {
		corpus.Dev, err = convert(dev)
	}
	if err != nil {
		return nil, fmt.Errorf("dev split: %w", err)
	}
	return corpus, nil
}
