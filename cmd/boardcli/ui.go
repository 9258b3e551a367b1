package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwrk-planet/board-service/internal/client"
	"github.com/cwrk-planet/board-service/internal/render"
	"github.com/cwrk-planet/board-service/internal/transport/ws"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const previewRows = 14

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	noticeStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#A0A0A0"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#505050"))
)

type (
	eventMsg  client.Event
	closedMsg struct{ err error }
	savedMsg  struct {
		path string
		err  error
	}
)

type model struct {
	conn     *client.Conn
	sess     *client.Session
	replayer *render.Replayer
	name     string
	pen      pen

	// первое действие после подключения: create/join
	start func() error

	viewport viewport.Model
	input    textinput.Model
	lines    []string
	chatSeen int
	preview  bool
	canvas   string
	width    int
	height   int
	ready    bool
	err      error
}

func newModel(conn *client.Conn, replayer *render.Replayer, name string, start func(*client.Session) error) model {
	ti := textinput.New()
	ti.Placeholder = "Type a message or /help..."
	ti.Focus()
	ti.CharLimit = 512
	ti.Width = 20

	sess := client.NewSession(conn)
	m := model{
		conn:     conn,
		sess:     sess,
		replayer: replayer,
		name:     name,
		pen:      defaultPen(),
		input:    ti,
	}
	if start != nil {
		m.start = func() error { return start(sess) }
	}
	return m
}

func waitForEvent(c *client.Conn) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-c.Events()
		if !ok {
			return closedMsg{err: c.Err()}
		}
		return eventMsg(ev)
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, waitForEvent(m.conn)}
	if m.start != nil {
		start := m.start
		cmds = append(cmds, func() tea.Msg {
			if err := start(); err != nil {
				return closedMsg{err: err}
			}
			return nil
		})
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyCtrlZ:
			m.undo()
			return m, nil
		case tea.KeyCtrlY:
			m.redo()
			return m, nil
		case tea.KeyEnter:
			content := m.input.Value()
			m.input.SetValue("")
			if strings.TrimSpace(content) == "" {
				return m, nil
			}
			cmd := m.submit(content)
			return m, cmd
		}

	case eventMsg:
		m.handleEvent(client.Event(msg))
		return m, waitForEvent(m.conn)

	case closedMsg:
		m.err = msg.err
		if m.err == nil {
			m.err = errors.New("connection closed")
		}
		return m, tea.Quit

	case savedMsg:
		if msg.err != nil {
			m.logf(errorStyle, "save failed: %v", msg.err)
		} else {
			m.logf(noticeStyle, "saved %s", msg.path)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	}

	m.input, tiCmd = m.input.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height
	footerHeight := 2
	headerHeight := 3
	if m.preview {
		headerHeight += previewRows + 1
	}
	vh := max(height-headerHeight-footerHeight, 3)

	if !m.ready {
		m.viewport = viewport.New(width, vh)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vh
	}
	m.input.Width = width
	m.refresh()
}

func (m *model) handleEvent(ev client.Event) {
	change, err := m.sess.Handle(ev)
	if err != nil {
		m.logf(errorStyle, "bad event: %v", err)
		return
	}

	if ev.Type == ws.TypeRoomExists {
		if exists, ok := m.sess.RoomExists(); ok {
			if exists {
				m.logf(noticeStyle, "room exists")
			} else {
				m.logf(noticeStyle, "no such room")
			}
		}
	}
	if ev.Type == ws.TypeCreated || (ev.Type == ws.TypeJoined && m.sess.Room() != "") {
		m.logf(noticeStyle, "you are in room %s", m.sess.Room())
	}
	for _, n := range m.sess.TakeNotices() {
		m.logf(noticeStyle, "%s", n)
	}

	if change.Has(client.ChangeChat) || change.Has(client.ChangeRoom) {
		m.appendChat()
	}
	if change.Has(client.ChangeCanvas) && m.preview {
		m.renderCanvas()
	}
}

// appendChat дописывает новые строки чата в лог.
func (m *model) appendChat() {
	chat := m.sess.Chat()
	if len(chat) < m.chatSeen {
		m.chatSeen = 0
	}
	colors := make(map[string]string)
	for _, mem := range m.sess.Members() {
		colors[mem.ID] = mem.Color
	}
	for _, line := range chat[m.chatSeen:] {
		name := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorOr(colors[line.UserID]))).Render(line.Name)
		m.lines = append(m.lines, fmt.Sprintf("%s %s %s %s",
			mutedStyle.Render(line.At.Format("15:04")), borderStyle.Render("│"), name, line.Text))
	}
	m.chatSeen = len(chat)
	m.refresh()
}

func colorOr(c string) string {
	if c == "" {
		return "#C0C0C0"
	}
	return c
}

func (m *model) submit(content string) tea.Cmd {
	cmd, ok := parseLine(content)
	if !ok {
		if m.sess.Room() == "" {
			m.logf(errorStyle, "join a room first (/create or /join CODE)")
			return nil
		}
		m.check(m.sess.SendMessage(content))
		return nil
	}

	switch cmd.name {
	case "help":
		for _, l := range strings.Split(helpText, "\n") {
			m.logf(mutedStyle, "%s", l)
		}
	case "quit", "exit":
		return tea.Quit
	case "create":
		m.check(m.sess.CreateRoom(m.name))
	case "join":
		if len(cmd.args) != 1 {
			m.logf(errorStyle, "usage: /join CODE")
			break
		}
		m.check(m.sess.JoinRoom(cmd.args[0], m.name))
	case "check":
		if len(cmd.args) != 1 {
			m.logf(errorStyle, "usage: /check CODE")
			break
		}
		m.check(m.sess.CheckRoom(cmd.args[0]))
	case "leave":
		m.check(m.sess.Leave())
		m.logf(noticeStyle, "left the room")
		m.canvas = ""
	case "undo":
		m.undo()
	case "redo":
		m.redo()
	case "clear":
		m.check(m.sess.ClearCanvas())
	case "cursor":
		n, err := floats(cmd.args, 2, 2, "/cursor X Y")
		if m.check(err) {
			m.check(m.sess.MoveMouse(n[0], n[1]))
		}
	case "save":
		if len(cmd.args) != 1 {
			m.logf(errorStyle, "usage: /save FILE.png|FILE.pdf")
			break
		}
		return m.save(cmd.args[0])
	case "preview":
		m.preview = !m.preview
		if m.preview {
			m.renderCanvas()
		}
		if m.ready {
			m.resize(m.width, m.height)
		}
	default:
		if handled, err := m.pen.apply(cmd); handled {
			if m.check(err) {
				m.logf(mutedStyle, "pen: %s", m.penLabel())
			}
			break
		}
		move, handled, err := m.pen.shape(cmd)
		if !handled {
			m.logf(errorStyle, "unknown command /%s, try /help", cmd.name)
			break
		}
		if m.check(err) {
			m.check(m.sess.Draw(move))
		}
	}
	return nil
}

func (m *model) undo() {
	if ok, err := m.sess.Undo(); m.check(err) && !ok {
		m.logf(mutedStyle, "nothing to undo")
	}
}

func (m *model) redo() {
	if ok, err := m.sess.Redo(); m.check(err) && !ok {
		m.logf(mutedStyle, "nothing to redo")
	}
}

func (m *model) check(err error) bool {
	if err == nil {
		return true
	}
	m.logf(errorStyle, "%v", err)
	return false
}

func (m model) save(path string) tea.Cmd {
	moves := m.sess.Moves()
	title := "Room " + m.sess.Room()
	replayer := m.replayer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		f, err := os.Create(path)
		if err != nil {
			return savedMsg{path: path, err: err}
		}
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			err = replayer.ExportPDF(ctx, f, title, moves)
		} else {
			err = replayer.EncodePNG(ctx, f, moves)
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		return savedMsg{path: path, err: err}
	}
}

func (m *model) renderCanvas() {
	if m.sess.Room() == "" {
		m.canvas = ""
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	img := m.replayer.Render(ctx, m.sess.Moves())
	m.canvas = asciiArt(img, max(m.viewport.Width, 20), previewRows)
}

// asciiArt переводит картинку в сетку символов по яркости.
func asciiArt(img image.Image, cols, rows int) string {
	const ramp = "@%#*+=-:. "
	b := img.Bounds()
	var sb strings.Builder
	for r := 0; r < rows; r++ {
		y := b.Min.Y + (2*r+1)*b.Dy()/(2*rows)
		for c := 0; c < cols; c++ {
			x := b.Min.X + (2*c+1)*b.Dx()/(2*cols)
			cr, cg, cb, _ := img.At(x, y).RGBA()
			lum := (299*cr + 587*cg + 114*cb) / 1000 // 0..65535
			sb.WriteByte(ramp[int(lum)*(len(ramp)-1)/0xffff])
		}
		if r < rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (m *model) logf(style lipgloss.Style, format string, args ...any) {
	m.lines = append(m.lines, style.Render(fmt.Sprintf(format, args...)))
	m.refresh()
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func (m model) penLabel() string {
	c := m.pen.color
	label := fmt.Sprintf("%s width=%g color=#%02x%02x%02x", m.pen.mode, m.pen.width, c.R, c.G, c.B)
	if m.pen.fill.A > 0 {
		f := m.pen.fill
		label += fmt.Sprintf(" fill=#%02x%02x%02x", f.R, f.G, f.B)
	}
	return label
}

func (m model) header() string {
	room := m.sess.Room()
	if room == "" {
		return titleStyle.Render("board") + " " + mutedStyle.Render("not in a room, /create or /join CODE") + "\n"
	}

	members := make([]string, 0)
	for _, mem := range m.sess.Members() {
		name := mem.Name
		if mem.ID == m.sess.SelfID() {
			name += " (you)"
		}
		members = append(members, lipgloss.NewStyle().Foreground(lipgloss.Color(colorOr(mem.Color))).Render(name))
	}

	status := fmt.Sprintf("moves %d", len(m.sess.Moves()))
	if m.sess.CanUndo() {
		status += " · undo"
	}
	if m.sess.CanRedo() {
		status += " · redo"
	}
	return fmt.Sprintf("%s %s  %s\n%s  %s",
		titleStyle.Render("board"), lipgloss.NewStyle().Bold(true).Render(room),
		strings.Join(members, ", "),
		mutedStyle.Render(status), mutedStyle.Render("pen: "+m.penLabel()))
}

func (m model) View() string {
	if !m.ready {
		return "\n  Connecting..."
	}
	var sb strings.Builder
	sb.WriteString(m.header())
	sb.WriteString("\n")
	sb.WriteString(borderStyle.Render(strings.Repeat("─", m.viewport.Width)))
	sb.WriteString("\n")
	if m.preview && m.canvas != "" {
		sb.WriteString(m.canvas)
		sb.WriteString("\n")
		sb.WriteString(borderStyle.Render(strings.Repeat("─", m.viewport.Width)))
		sb.WriteString("\n")
	}
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(borderStyle.Render(strings.Repeat("─", m.viewport.Width)))
	sb.WriteString("\n")
	sb.WriteString(m.input.View())
	return sb.String()
}
