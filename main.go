package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"cfaquiz_backend/internal/app"
	"cfaquiz_backend/internal/config"
	"cfaquiz_backend/internal/service"
	"cfaquiz_backend/internal/util"
)

func main() {
	// 命令行参数
	configDir := flag.String("config", "configs", "配置目录（包含 config.yaml）")
	importPath := flag.String("import", "", "导入一个 CSV 或 ZIP 文件后退出")
	validate := flag.Bool("validate", false, "校验题库存储是否可读，打印数量后退出")
	issueToken := flag.Bool("issue-token", false, "签发一个管理员 JWT 后退出")
	flag.Parse()

	cliMode := *importPath != "" || *validate || *issueToken

	load := config.LoadConfig
	if cliMode {
		load = config.LoadConfigOrDefault
	}
	cfg, err := load(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg.ImportOnce = *importPath
	cfg.ValidateOnly = *validate

	if *issueToken {
		os.Exit(runIssueToken(cfg))
	}

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	switch {
	case cfg.ImportOnce != "":
		code := runImport(application, cfg.ImportOnce)
		application.Close()
		os.Exit(code)
	case cfg.ValidateOnly:
		code := runValidate(application)
		application.Close()
		os.Exit(code)
	}

	err = application.Run()
	application.Close()
	if err != nil {
		log.Fatal(err)
	}
}

func runImport(a *app.App, path string) int {
	report, err := a.Services.Import.ImportFile(context.Background(), path)
	if report != nil {
		fmt.Print(service.BuildReportText(report))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		return 1
	}
	return 0
}

func runValidate(a *app.App) int {
	counts, err := a.Services.Catalog.Validate(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "catalog invalid: %v\n", err)
		return 1
	}
	fmt.Printf("questions: %d (bundled %d, imported %d)\n", counts.TotalQuestions, counts.BundledQuestions, counts.ImportedQuestions)
	fmt.Printf("formulas:  %d (bundled %d, imported %d)\n", counts.TotalFormulas, counts.BundledFormulas, counts.ImportedFormulas)
	return 0
}

func runIssueToken(cfg *config.Config) int {
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "jwt.secret is not configured")
		return 1
	}
	token, err := util.GenerateAdminToken("cli", cfg.JWT.Secret, cfg.JWT.ExpireTime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		return 1
	}
	fmt.Println(token)
	return 0
}
