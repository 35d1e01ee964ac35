package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eringen/inkwell"
	"github.com/eringen/inkwell/blog"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	cmd := "serve"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe()
	case "bootstrap":
		err = runBootstrap()
	case "version":
		fmt.Printf("inkwell %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := inkwell.LoadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := inkwell.New(cfg)
	defer app.Close()
	return app.Start(ctx)
}

func runBootstrap() error {
	cfg, err := inkwell.LoadConfig()
	if err != nil {
		return err
	}
	store, err := inkwell.NewStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := blog.Bootstrap(context.Background(), store, blog.AdminSeed{
		Username: cfg.Seed.Username,
		Email:    cfg.Seed.Email,
	})
	if err != nil {
		return err
	}
	if res.CategoriesSeeded > 0 {
		fmt.Printf("Seeded %d categories.\n", res.CategoriesSeeded)
	}
	if res.Admin == nil {
		fmt.Println("An admin account already exists; nothing else to do.")
		return nil
	}
	fmt.Printf(`Created admin account.

  Email:    %s
  Password: %s

This password is shown once. You will be asked to replace it at first login.
`, res.Admin.Email, res.Password)
	return nil
}

func printUsage() {
	fmt.Println(`inkwell - A multi-author blogging platform built with Go, Echo, and templ

Usage:
  inkwell <command>

Commands:
  serve         Run the web server (default)
  bootstrap     Create the database, default categories and first admin
  version       Print the inkwell version
  help          Show this help message

Configuration is read from the environment and an optional .env file.`)
}
