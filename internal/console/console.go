// Package console is a terminal view over the state store. It renders
// snapshots and forwards user intents into the gateway; no game logic or
// connection state lives here.
package console

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/openfelt/tableclient/internal/betting"
	"github.com/openfelt/tableclient/internal/protocol"
	"github.com/openfelt/tableclient/internal/state"
)

var rankGlyphs = []string{"2", "3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K", "A"}
var suitGlyphs = []string{"♣", "♦", "♥", "♠"}

// Intents is the slice of the gateway the console drives.
type Intents interface {
	TakeSeat(seatID string) error
	SendChat(message string) error
	Act(action string, raiseTo int) error
}

// stateMsg delivers a store snapshot into the bubbletea loop.
type stateMsg struct {
	st state.AppState
}

// Model is the bubbletea model for the table view.
type Model struct {
	intents Intents
	logger  *log.Logger

	input textinput.Model
	st    state.AppState
	note  string

	width  int
	height int
}

// NewModel creates the console model.
func NewModel(intents Intents, logger *log.Logger) *Model {
	ti := textinput.New()
	ti.Placeholder = "/sit <seat> | chat text | fold, check, call, raise <by>"
	ti.Prompt = "> "
	ti.CharLimit = 200
	ti.Focus()

	return &Model{
		intents: intents,
		logger:  logger.WithPrefix("console"),
		input:   ti,
	}
}

// Run starts the console over a store, blocking until quit. It subscribes
// to the store and feeds every snapshot into the bubbletea loop.
func Run(store *state.Store, intents Intents, logger *log.Logger) error {
	model := NewModel(intents, logger)
	program := tea.NewProgram(model, tea.WithAltScreen())

	unsubscribe := store.Subscribe(func(st state.AppState) {
		program.Send(stateMsg{st: st})
	})
	defer unsubscribe()

	model.st = store.State()
	_, err := program.Run()
	return err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.st = msg.st
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			m.submit(strings.TrimSpace(m.input.Value()))
			m.input.SetValue("")
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit interprets one line of input as an intent.
func (m *Model) submit(line string) {
	if line == "" {
		return
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/sit":
		if len(fields) < 2 {
			m.note = "usage: /sit <seat>"
			return
		}
		m.forward(m.intents.TakeSeat(fields[1]))

	case "/quit":
		m.note = "press esc to quit"

	case protocol.ActionFold, protocol.ActionCheck, protocol.ActionCall:
		m.forward(m.intents.Act(fields[0], 0))

	case protocol.ActionRaise:
		if len(fields) < 2 {
			m.note = "usage: raise <by-amount>"
			return
		}
		raiseBy, err := strconv.Atoi(fields[1])
		if err != nil {
			m.note = "raise amount must be a number"
			return
		}
		in := m.bettingInput()
		if raiseBy < in.MinRaiseAmount || raiseBy > in.MaxRaiseAmount {
			m.note = fmt.Sprintf("raise must be between %d and %d", in.MinRaiseAmount, in.MaxRaiseAmount)
			return
		}
		m.forward(m.intents.Act(protocol.ActionRaise, betting.RaiseTo(in, raiseBy)))

	default:
		m.forward(m.intents.SendChat(line))
	}
}

func (m *Model) forward(err error) {
	if err != nil {
		m.logger.Warn("intent failed", "err", err)
		m.note = err.Error()
		return
	}
	m.note = ""
}

func (m *Model) bettingInput() betting.Input {
	if m.st.Game == nil {
		return betting.Input{}
	}
	bar := m.st.Game.ActionBar
	return betting.Input{
		Stage:          m.st.Game.Stage,
		CallAmount:     bar.CallAmount,
		ChipsInPot:     bar.ChipsInPot,
		MinBetAmount:   bar.MinBetAmount,
		MinRaiseAmount: bar.MinRaiseAmount,
		MaxRaiseAmount: bar.MaxRaiseAmount,
		TotalChips:     bar.TotalChips,
		TotalPot:       m.st.Game.Table.Pot,
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(" table "))
	if m.st.Username != "" {
		b.WriteString(" " + m.st.Username)
	}
	b.WriteString("\n\n")

	if m.st.Err != "" {
		b.WriteString(errorStyle.Render(m.st.Err) + "\n\n")
	}

	if m.st.Game == nil {
		b.WriteString("waiting for the table...\n")
	} else {
		m.renderGame(&b)
	}

	if m.note != "" {
		b.WriteString(errorStyle.Render(m.note) + "\n")
	}
	b.WriteString("\n" + m.input.View() + "\n")
	return b.String()
}

func (m *Model) renderGame(b *strings.Builder) {
	game := m.st.Game

	b.WriteString(fmt.Sprintf("stage: %s   ", game.Stage))
	b.WriteString(potStyle.Render(fmt.Sprintf("pot: %d", game.Table.Pot)))
	b.WriteString("\n")
	b.WriteString("board: " + renderBoard(game.Table) + "\n\n")

	for i, player := range game.Players {
		b.WriteString(m.renderSeat(i, player) + "\n")
	}
	b.WriteString("\n")

	m.renderActionBar(b)
	m.renderChat(b)
}

func (m *Model) renderSeat(index int, player protocol.Player) string {
	if player.Status == protocol.StatusVacated {
		return seatStyle.Render(fmt.Sprintf("  seat %s: (open)", player.ID))
	}

	var tags []string
	if player.IsDealer {
		tags = append(tags, "D")
	}
	if m.st.SeatID == player.ID {
		tags = append(tags, "you")
	}
	if player.Muted {
		tags = append(tags, "muted")
	}
	if peerID, ok := m.st.Game.SeatOccupant(player.ID); ok {
		if peer, ok := m.st.Peers[peerID]; ok {
			tags = append(tags, "video:"+peer.State.String())
		}
	}

	line := fmt.Sprintf("  seat %s: %s (%d)", player.ID, player.Name, player.Chips)
	if len(tags) > 0 {
		line += " [" + strings.Join(tags, " ") + "]"
	}
	if cards := renderCards(player.HoleCards); cards != "" {
		line += "  " + cards
	}

	switch {
	case player.HasFolded:
		return foldedSeatStyle.Render(line)
	case player.IsActive:
		return activeSeatStyle.Render(line)
	default:
		return seatStyle.Render(line)
	}
}

func (m *Model) renderActionBar(b *strings.Builder) {
	game := m.st.Game
	if game.Stage == protocol.StageWaiting || game.ActionBar.SeatID != m.st.SeatID || !m.st.Seated() {
		return
	}

	result := betting.Compute(m.bettingInput())

	b.WriteString(actionsStyle.Render("your turn: "+strings.Join(result.LegalActions, ", ")) + "\n")
	if result.CallAllIn {
		b.WriteString("  call: ALL IN\n")
	} else if result.CallRemaining > 0 {
		b.WriteString(fmt.Sprintf("  call: %d\n", result.CallRemaining))
	}

	if len(result.Suggestions) > 0 {
		var parts []string
		for _, s := range result.Suggestions {
			parts = append(parts, fmt.Sprintf("%s=%d", s.Label, s.Value))
		}
		b.WriteString("  sizes: " + strings.Join(parts, "  ") + "\n")
	}
	b.WriteString("\n")
}

func (m *Model) renderChat(b *strings.Builder) {
	chat := m.st.Chat
	if len(chat) > 8 {
		chat = chat[len(chat)-8:]
	}
	for _, entry := range chat {
		b.WriteString(chatStyle.Render(fmt.Sprintf("%s: %s", entry.Username, entry.Message)) + "\n")
	}
}

func renderBoard(table protocol.Table) string {
	cards := make([]*protocol.Card, 0, 5)
	cards = append(cards, table.Flop...)
	cards = append(cards, table.Turn, table.River)
	rendered := renderCards(cards)
	if rendered == "" {
		return "--"
	}
	return rendered
}

func renderCards(cards []*protocol.Card) string {
	var parts []string
	for _, card := range cards {
		if card == nil {
			continue
		}
		glyph := rankGlyphs[card.Rank] + suitGlyphs[card.Suit]
		if card.Suit == 1 || card.Suit == 2 {
			parts = append(parts, redCardStyle.Render(glyph))
		} else {
			parts = append(parts, blackCardStyle.Render(glyph))
		}
	}
	return strings.Join(parts, " ")
}
