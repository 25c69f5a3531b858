package service

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"

	"cfaquiz_backend/internal/model"
)

const (
	questionIDPrefix = "q_"
	formulaIDPrefix  = "f_"
)

// normalizeDedupeValue 去首尾空白、小写、内部空白压缩为单个空格
func normalizeDedupeValue(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(v)), " ")
}

// QuestionDedupeKey 由题干、选项文本集合、正确选项文本集合组成，与选项顺序无关
func QuestionDedupeKey(stem string, choices []string, correctIndices []int) string {
	normalizedChoices := make([]string, 0, len(choices))
	for _, c := range choices {
		if n := normalizeDedupeValue(c); n != "" {
			normalizedChoices = append(normalizedChoices, n)
		}
	}
	sort.Strings(normalizedChoices)

	correctSet := make(map[string]struct{})
	for _, idx := range correctIndices {
		if idx < 0 || idx >= len(choices) {
			continue
		}
		if n := normalizeDedupeValue(choices[idx]); n != "" {
			correctSet[n] = struct{}{}
		}
	}
	correct := make([]string, 0, len(correctSet))
	for c := range correctSet {
		correct = append(correct, c)
	}
	sort.Strings(correct)

	return strings.Join([]string{
		normalizeDedupeValue(stem),
		strings.Join(normalizedChoices, "|"),
		strings.Join(correct, "|"),
	}, "||")
}

func FormulaDedupeKey(f *model.Formula) string {
	parts := []string{f.Category, f.TopicValue(), f.Title, f.Formula}
	for i, p := range parts {
		parts[i] = normalizeDedupeValue(p)
	}
	return strings.Join(parts, "|")
}

// StableID FNV-1a 64 位，固定 16 位十六进制
func StableID(prefix, key string) string {
	h := fnv.New64a()
	h.Write([]byte(key))
	return fmt.Sprintf("%s%016x", prefix, h.Sum64())
}

func QuestionStableID(key string) string { return StableID(questionIDPrefix, key) }

func FormulaStableID(key string) string { return StableID(formulaIDPrefix, key) }

func questionKey(q *model.Question) string {
	return QuestionDedupeKey(q.Stem, q.Choices, q.CorrectIndices)
}

// dedupeBy 单遍去重，先出现者保留
func dedupeBy[T any](items []T, key func(T) string) ([]T, int) {
	return mergeBy(nil, items, key)
}

// mergeBy existing 先自身去重，incoming 仅在 key 未出现时追加，已有内容不会被覆盖
func mergeBy[T any](existing, incoming []T, key func(T) string) ([]T, int) {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	result := make([]T, 0, len(existing)+len(incoming))
	duplicates := 0

	for _, batch := range [][]T{existing, incoming} {
		for _, item := range batch {
			k := key(item)
			if _, ok := seen[k]; ok {
				duplicates++
				continue
			}
			seen[k] = struct{}{}
			result = append(result, item)
		}
	}
	return result, duplicates
}

func DedupeQuestions(questions []*model.Question) ([]*model.Question, int) {
	return dedupeBy(questions, questionKey)
}

func MergeQuestions(existing, incoming []*model.Question) ([]*model.Question, int) {
	return mergeBy(existing, incoming, questionKey)
}

func DedupeFormulas(formulas []*model.Formula) ([]*model.Formula, int) {
	return dedupeBy(formulas, FormulaDedupeKey)
}

func MergeFormulas(existing, incoming []*model.Formula) ([]*model.Formula, int) {
	return mergeBy(existing, incoming, FormulaDedupeKey)
}
