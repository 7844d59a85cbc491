package main

import (
	"embed"
	"log/slog"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"github.com/voxpad/voxpad/internal/app"
	"github.com/voxpad/voxpad/internal/types"
)

//go:embed all:frontend/dist
var assets embed.FS

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.Info("starting app", "version", version, "commit", commit, "date", date)
	service := app.New(version)

	wapp := application.New(application.Options{
		Name:        "VoxPad",
		Description: "Voice dictation straight to your clipboard",
		Services: []application.Service{
			application.NewService(service),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(assets),
		},
		Mac: application.MacOptions{
			// Don't quit when all windows are closed (we have a system tray)
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	mainWindow := wapp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:  "VoxPad",
		Width:  480,
		Height: 640,
		URL:    "/",
		Mac: application.MacWindow{
			TitleBar:                application.MacTitleBarHiddenInsetUnified,
			InvisibleTitleBarHeight: 38,
		},
	})

	// Intercept window close: hide instead of destroy so tray can reopen
	mainWindow.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		e.Cancel()
		mainWindow.Hide()
	})

	service.Init(wapp, mainWindow)

	systemTray := wapp.SystemTray.New()
	systemTray.SetLabel("VoxPad")

	trayMenu := wapp.NewMenu()
	trayMenu.Add("Show Window").OnClick(func(ctx *application.Context) {
		service.ShowWindow()
	})
	trayMenu.Add("Toggle Dictation").
		SetAccelerator("CmdOrCtrl+Shift+D").
		OnClick(func(ctx *application.Context) {
			go service.ToggleDictation()
		})
	trayMenu.AddCheckbox("Hands-Free Mode", service.GetSettings().HandsFree).
		OnClick(func(ctx *application.Context) {
			if err := service.SetHandsFree(ctx.ClickedMenuItem().Checked()); err != nil {
				slog.Error("set hands-free", "error", err)
			}
		})

	languageMenu := trayMenu.AddSubmenu("Language")
	current := service.GetSettings().Language
	for _, code := range types.SupportedLanguages {
		lang := code
		languageMenu.AddRadio(lang, lang == current).OnClick(func(ctx *application.Context) {
			if err := service.SetLanguage(lang); err != nil {
				slog.Error("set language", "error", err)
			}
		})
	}

	trayMenu.AddSeparator()
	trayMenu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(ctx *application.Context) {
			service.Shutdown()
			wapp.Quit()
		})

	systemTray.SetMenu(trayMenu)

	if err := wapp.Run(); err != nil {
		slog.Error("run app", "error", err)
	}
}
