// 手动导出题库概况
//
// 按级别列出各类别题目数量和子类别，以 YAML 输出，便于导入大批题目后核对。
// 加 -csv 可同时把题目导出为可再导入的 CSV。
//
// 用法: go run scripts/catalog_summary.go [-config configs] [-csv questions.csv]

package main

import (
	"context"
	"flag"
	"log"
	"os"

	"cfaquiz_backend/internal/app"
	"cfaquiz_backend/internal/config"
	"cfaquiz_backend/internal/model"
	"cfaquiz_backend/internal/service"

	"gopkg.in/yaml.v3"
)

type categorySummary struct {
	Name          string   `yaml:"name"`
	Questions     int      `yaml:"questions"`
	Subcategories []string `yaml:"subcategories,omitempty"`
}

type levelSummary struct {
	Level      int               `yaml:"level"`
	Categories []categorySummary `yaml:"categories"`
}

type summary struct {
	Counts service.CatalogCounts `yaml:"counts"`
	Levels []levelSummary        `yaml:"levels"`
}

func main() {
	configDir := flag.String("config", "configs", "配置目录")
	csvPath := flag.String("csv", "", "同时导出题目 CSV 到该路径")
	flag.Parse()

	cfg, err := config.LoadConfigOrDefault(*configDir)
	if err != nil {
		log.Fatalf("无法读取配置: %v", err)
	}

	a, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	counts, err := a.Services.Catalog.Validate(ctx)
	if err != nil {
		log.Fatalf("题库不可读: %v", err)
	}

	out := summary{Counts: counts}
	for _, level := range []model.Level{1, 2, 3} {
		infos, err := a.Services.Catalog.Categories(ctx, level)
		if err != nil {
			log.Fatalf("统计类别失败: %v", err)
		}
		ls := levelSummary{Level: int(level)}
		for _, info := range infos {
			if info.QuestionCount == 0 {
				continue
			}
			ls.Categories = append(ls.Categories, categorySummary{
				Name:          info.Name,
				Questions:     info.QuestionCount,
				Subcategories: info.Subcategories,
			})
		}
		out.Levels = append(out.Levels, ls)
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		log.Fatalf("输出失败: %v", err)
	}
	enc.Close()

	if *csvPath == "" {
		return
	}
	f, err := os.Create(*csvPath)
	if err != nil {
		log.Fatalf("无法创建 CSV: %v", err)
	}
	defer f.Close()
	if err := a.Services.Catalog.ExportQuestions(ctx, f, service.QuestionFilter{}); err != nil {
		log.Fatalf("导出失败: %v", err)
	}
	log.Printf("题目已导出到 %s", *csvPath)
}
