// Package tui implements the terminal user interface for trill.
package tui

import (
	"context"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mcostalima/trill/internal/api"
	"github.com/mcostalima/trill/internal/tui/keys"
	"github.com/mcostalima/trill/internal/tui/model"
	"github.com/mcostalima/trill/internal/tui/ui"
	"github.com/mcostalima/trill/internal/tui/views"
	"github.com/mcostalima/trill/internal/wire"
	"github.com/rivo/tview"
)

// Page names.
const (
	pageChats      = "chats"
	pageChat       = "chat"
	pageConnectors = "connectors"
	pageConfirm    = "confirm"
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	pages    *ui.Pages
	theme    *ui.Theme
	vm       *model.ViewModel
	api      *api.Client
	registry *keys.Registry

	prompt     *ui.Prompt
	statusBar  *views.StatusBar
	chatList   *views.ChatList
	msgView    *views.MessageView
	uploadList *views.UploadList
	composer   *views.Composer
	confirmV   *views.ConfirmView
	connV      *views.ConnectorsView

	chatFlex   *tview.Flex
	root       *tview.Flex
	connectors []string

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(vm *model.ViewModel, client *api.Client, profileName string) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:        tview.NewApplication(),
		pages:      ui.NewPages(),
		theme:      ui.DefaultTheme(),
		vm:         vm,
		api:        client,
		registry:   keys.NewRegistry(),
		statusBar:  views.NewStatusBar(),
		chatList:   views.NewChatList(),
		msgView:    views.NewMessageView(),
		uploadList: views.NewUploadList(),
		composer:   views.NewComposer(),
		confirmV:   views.NewConfirmView(),
		connV:      views.NewConnectorsView(),
		ctx:        ctx,
		cancel:     cancel,
	}
	a.prompt = ui.NewPrompt(a.theme)

	a.statusBar.SetProfile(profileName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddView(pageChats, "quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddView(pageChats, "new", &keys.Action{
		Rune: 'n', Key: tcell.KeyRune,
		Description: "n:new chat", Visible: true,
		Handler: func() { a.openDraft() },
	})
	a.registry.AddView(pageChat, "stop", &keys.Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "s:stop", Visible: true,
		Handler: func() { a.vm.Stream.StopStreaming() },
	})
	a.registry.AddView(pageChat, "confirm", &keys.Action{
		Rune: 'c', Key: tcell.KeyRune,
		Description: "c:confirm", Visible: true,
		Handler: func() { a.openConfirm() },
	})
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(row, col int) {
		if chatID := a.chatList.SelectedChat(); chatID != "" {
			a.openChat(chatID)
		}
	})
	a.chatList.SetOnLoadOlder(func() {
		go func() {
			if n, _ := a.vm.ChatLdr.LoadOlder(a.ctx); n > 0 {
				a.draw()
			}
		}()
	})

	a.msgView.SetOnLoadOlder(func() {
		chatID := a.vm.Convos.ConversationID()
		go func() {
			n, err := a.vm.Loader.LoadOlder(a.ctx, chatID)
			if err != nil || n == 0 {
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.msgView.Update(a.vm.Convos.Messages(chatID), n)
			})
		}()
	})

	a.composer.SetOnSend(func(text string) {
		a.vm.Send(text)
	})

	a.confirmV.SetOnDecide(func(msgID string, d wire.Decision) {
		a.vm.Decide(msgID, d)
		a.pages.Pop()
		a.app.SetFocus(a.msgView)
	})

	a.prompt.SetOnSubmit(func(text string) {
		a.hidePrompt()
		a.runCommand(ParseCommand(text))
	})
	a.prompt.SetOnCancel(func() {
		a.hidePrompt()
	})

	// Server-created chats (draft sends) switch the view automatically.
	a.vm.Stream.SetNavigate(func(chatID string) {
		a.app.QueueUpdateDraw(func() {
			a.showChatPage(chatID)
		})
	})
}

func (a *App) setupLayout() {
	a.chatFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, true).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage(pageChats, a.chatList, true, true)
	a.pages.AddPage(pageChat, a.chatFlex, true, false)
	a.pages.AddPage(pageConnectors, a.connV, true, false)
	a.pages.AddPage(pageConfirm, a.confirmV, true, false)
	a.pages.Reset(pageChats)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
}

func (a *App) handleKey(event *tcell.EventKey) *tcell.EventKey {
	current := a.pages.Current()

	if event.Key() == tcell.KeyEscape && a.app.GetFocus() != a.prompt.InputField {
		if popped := a.pages.Pop(); popped != "" {
			a.focusCurrent()
			return nil
		}
		return event
	}

	// Let text input widgets handle all keys normally.
	focused := a.app.GetFocus()
	switch focused.(type) {
	case *tview.InputField, *tview.TextArea:
		return event
	}

	if event.Key() == tcell.KeyRune {
		switch {
		case event.Rune() == ':':
			a.showPrompt()
			return nil
		case current == pageChat && event.Rune() == 'i':
			a.app.SetFocus(a.composer.InputField)
			return nil
		case current == pageConnectors && event.Rune() >= '1' && event.Rune() <= '9':
			a.authorizeConnector(int(event.Rune() - '1'))
			return nil
		}
	}

	if a.registry.HandleEvent(current, event) {
		return nil
	}
	return event
}

func (a *App) focusCurrent() {
	switch a.pages.Current() {
	case pageChats:
		a.app.SetFocus(a.chatList)
	case pageChat:
		a.app.SetFocus(a.msgView)
	default:
		a.app.SetFocus(a.pages)
	}
}

func (a *App) showPrompt() {
	a.root.RemoveItem(a.statusBar)
	a.root.AddItem(a.prompt, 3, 0, false)
	a.root.AddItem(a.statusBar, 1, 0, false)
	a.prompt.Activate()
	a.app.SetFocus(a.prompt.InputField)
}

func (a *App) hidePrompt() {
	a.root.RemoveItem(a.prompt)
	a.focusCurrent()
}

func (a *App) runCommand(cmd Command) {
	switch cmd.Name {
	case "quit":
		a.app.Stop()
	case "new":
		a.openDraft()
	case "attach":
		if cmd.Args == "" {
			a.vm.Flash.Warn("usage: :attach <path>")
			return
		}
		a.vm.Attach(a.ctx, cmd.Args)
	case "detach":
		a.vm.DetachLast(a.ctx)
	case "delete":
		chatID := cmd.Args
		if chatID == "" {
			chatID = a.chatList.SelectedChat()
		}
		if chatID == "" {
			a.vm.Flash.Warn("no chat selected")
			return
		}
		a.vm.DeleteChat(a.ctx, chatID)
	case "connectors":
		a.openConnectors()
	case "stop":
		a.vm.Stream.StopStreaming()
	default:
		a.vm.Flash.Warn("unknown command: " + cmd.Name)
	}
}

func (a *App) openChat(chatID string) {
	go func() {
		a.vm.OpenChat(a.ctx, chatID)
		a.app.QueueUpdateDraw(func() {
			a.showChatPage(chatID)
		})
	}()
}

func (a *App) showChatPage(chatID string) {
	title := chatID
	for _, c := range a.vm.Chats.List() {
		if c.ID == chatID && c.Title != "" {
			title = c.Title
			break
		}
	}
	a.msgView.SetChatTitle(title)
	a.msgView.Update(a.vm.Convos.Messages(chatID), 0)
	if a.pages.Current() != pageChat {
		a.pages.Push(pageChat)
	}
	a.app.SetFocus(a.msgView)
}

func (a *App) openDraft() {
	a.vm.NewDraft()
	a.msgView.SetChatTitle("New chat")
	a.msgView.Update(nil, 0)
	if a.pages.Current() != pageChat {
		a.pages.Push(pageChat)
	}
	a.app.SetFocus(a.composer.InputField)
}

func (a *App) openConfirm() {
	pending := a.vm.PendingConfirmation()
	if pending == nil {
		a.vm.Flash.Info("nothing to confirm")
		return
	}
	a.confirmV.Load(pending.ID, pending.Content.Confirmation)
	a.pages.Push(pageConfirm)
	a.app.SetFocus(a.confirmV)
}

func (a *App) openConnectors() {
	a.pages.Push(pageConnectors)
	a.app.SetFocus(a.connV)
	go func() {
		names, err := a.api.Connectors(a.ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.connV.ShowError(err)
				return
			}
			a.connectors = names
			a.connV.ShowList(names)
		})
	}()
}

func (a *App) authorizeConnector(idx int) {
	if idx >= len(a.connectors) {
		return
	}
	name := a.connectors[idx]
	go func() {
		url, err := a.api.ConnectorAuthURL(a.ctx, name)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.connV.ShowError(err)
				return
			}
			a.connV.ShowAuthURL(name, url)
		})
	}()
}

// draw queues a full re-render of the current page.
func (a *App) draw() {
	a.app.QueueUpdateDraw(a.render)
}

func (a *App) render() {
	switch a.pages.Current() {
	case pageChats:
		a.chatList.Update(a.vm.Chats.List())
	case pageChat:
		chatID := a.vm.Convos.ConversationID()
		a.msgView.Update(a.vm.Convos.Messages(chatID), 0)
		if a.uploadList.Update(a.vm.Uploads.List()) {
			if a.chatFlex.GetItemCount() == 2 {
				a.chatFlex.RemoveItem(a.composer)
				a.chatFlex.AddItem(a.uploadList, 1, 0, false)
				a.chatFlex.AddItem(a.composer, 1, 0, false)
			}
		} else if a.chatFlex.GetItemCount() == 3 {
			a.chatFlex.RemoveItem(a.uploadList)
		}
	}
	a.statusBar.SetState(a.vm.Machine.Current())
	a.statusBar.SetFlags(a.vm.Flags())
	a.statusBar.SetFlash(a.vm.Flash.Get())
}

// Run starts the TUI application.
func (a *App) Run() error {
	a.vm.Start(a.ctx)

	go func() {
		a.vm.WarmStart(a.ctx)
		a.draw()
		a.startRefreshLoop()
	}()

	return a.app.Run()
}

func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-a.vm.RefreshCh():
				a.draw()
			case <-ticker.C:
				// Clock and flash expiry.
				a.app.QueueUpdateDraw(func() {
					a.statusBar.SetFlash(a.vm.Flash.Get())
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.vm.Stop()
	a.app.Stop()
}
