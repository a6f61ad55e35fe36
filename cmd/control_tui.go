// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Los Trencitos

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/LOS-trencitos/trenctl/pkg/control"
	"github.com/LOS-trencitos/trenctl/pkg/roster"
	"github.com/LOS-trencitos/trenctl/pkg/trenes"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const speedNudge = 4 // Speed step for +/- keys

// Focus states
const (
	focusTrainList = iota
	focusSpeedInput
	focusButton
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// trainItem adapts a device record to the list component.
type trainItem struct {
	rec       trenes.Record
	connected bool
}

// Implement list.Item interface
func (t trainItem) Title() string {
	name := t.rec.ShortName
	if t.rec.Bonded && t.rec.LongName != "" {
		name = t.rec.LongName
	}
	if t.connected {
		return name + " *"
	}
	return name
}

func (t trainItem) Description() string {
	if !t.rec.Bonded {
		return "unbonded"
	}
	return fmt.Sprintf("DCC %d | speed %d | %s", t.rec.DCCCode, t.rec.Speed, t.rec.Direction)
}

func (t trainItem) FilterValue() string { return t.rec.ShortName }

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	svc     *control.Service
	backend string

	// Latest directory state. Bonded trains are listed first.
	snap      roster.Snapshot
	trains    []trainItem
	trainList list.Model

	// Control
	speedInput   textinput.Model
	focusedField int

	// Event log
	eventLog      []eventLogEntry
	maxLogEntries int

	// UI state
	width    int
	height   int
	scanning bool
	quitting bool
}

type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type tuiTickMsg time.Time

type rosterChangedMsg struct {
	snap roster.Snapshot
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(svc *control.Service, backend string) controlModel {
	ti := textinput.New()
	ti.Placeholder = "60"
	ti.CharLimit = 3
	ti.Width = 6

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	trainList := list.New([]list.Item{}, delegate, 34, 12)
	trainList.Title = "Trains"
	trainList.SetShowStatusBar(false)
	trainList.SetShowHelp(false)
	trainList.SetFilteringEnabled(false)

	return controlModel{
		svc:           svc,
		backend:       backend,
		trainList:     trainList,
		speedInput:    ti,
		focusedField:  focusTrainList,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
		scanning:      true,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tuiTickCmd()
}

func tuiTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tuiTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case tuiTickMsg:
		return m, tuiTickCmd()

	case rosterChangedMsg:
		m.applySnapshot(msg.snap)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focusedField == focusSpeedInput {
		m.speedInput, cmd = m.speedInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	if m.focusedField == focusTrainList {
		m.trainList, cmd = m.trainList.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		return m.cycleFocus(1), nil

	case "shift+tab":
		return m.cycleFocus(-1), nil

	case "s":
		if m.focusedField != focusSpeedInput {
			m.toggleScanning()
			return m, nil
		}

	case "enter":
		return m.handleEnter()

	case "+", "=":
		if m.focusedField != focusSpeedInput {
			m.nudgeSpeed(speedNudge)
			return m, nil
		}

	case "-", "_":
		if m.focusedField != focusSpeedInput {
			m.nudgeSpeed(-speedNudge)
			return m, nil
		}

	case "left":
		if m.focusedField != focusTrainList {
			m.setDirection(trenes.DirectionLeft)
			return m, nil
		}

	case "right":
		if m.focusedField != focusTrainList {
			m.setDirection(trenes.DirectionRight)
			return m, nil
		}

	case " ":
		if m.focusedField != focusSpeedInput {
			m.setDirection(trenes.DirectionStop)
			return m, nil
		}

	case "up", "k", "down", "j":
		if m.focusedField == focusTrainList {
			m.trainList, _ = m.trainList.Update(msg)
			return m, nil
		}
	}

	// Pass through to focused component
	if m.focusedField == focusSpeedInput {
		var cmd tea.Cmd
		m.speedInput, cmd = m.speedInput.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *controlModel) cycleFocus(delta int) *controlModel {
	maxFocus := focusButton
	m.focusedField = (m.focusedField + delta + maxFocus + 1) % (maxFocus + 1)

	// The speed input only makes sense with a driven train.
	if m.focusedField == focusSpeedInput && m.connectedRecord() == nil {
		m.focusedField = (m.focusedField + delta + maxFocus + 1) % (maxFocus + 1)
	}

	if m.focusedField == focusSpeedInput {
		m.speedInput.Focus()
	} else {
		m.speedInput.Blur()
	}

	return m
}

func (m *controlModel) handleEnter() (tea.Model, tea.Cmd) {
	if m.focusedField == focusSpeedInput {
		m.applySpeedInput()
		return m, nil
	}

	highlighted := m.highlightedTrain()
	if highlighted == nil {
		return m, nil
	}

	if !highlighted.rec.Bonded {
		m.svc.Bond(highlighted.rec.Address)
		m.addLogEntry(fmt.Sprintf("Bonding %s...", highlighted.rec.ShortName), false)
		return m, nil
	}

	if !highlighted.connected {
		m.svc.Connect(highlighted.rec.Address)
		m.addLogEntry(fmt.Sprintf("Connecting %s...", highlighted.rec.ShortName), false)
	}
	return m, nil
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	buttonStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 2)

	focusedButtonStyle := buttonStyle.
		Background(lipgloss.Color("10"))

	// Header
	scanStatus := "scan off"
	if m.scanning {
		scanStatus = warningStyle.Render("scanning")
	}
	s.WriteString(titleStyle.Render("TRENCTL CONTROL"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s | q=quit Tab=switch s=scan", m.backend, scanStatus)))
	s.WriteString("\n\n")

	// Layout: left panel (trains) | right panel (drive)
	leftWidth := 36
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 20 {
		rightWidth = 20
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusTrainList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	trainPanel := listStyle.Render(m.trainList.View())

	driveContent := m.renderDrivePanel(labelStyle, valueStyle, headerStyle, buttonStyle, focusedButtonStyle)
	drivePanel := boxStyle.Width(rightWidth).Render(driveContent)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, trainPanel, " ", drivePanel))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(m.renderEventLog(labelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderDrivePanel(labelStyle, valueStyle, headerStyle, buttonStyle, focusedButtonStyle lipgloss.Style) string {
	var s strings.Builder

	highlighted := m.highlightedTrain()
	if highlighted == nil {
		s.WriteString(headerStyle.Render("No trains discovered yet"))
		return s.String()
	}

	rec := highlighted.rec
	if m.snap.Selected != nil {
		rec = *m.snap.Selected
	}

	name := rec.ShortName
	if rec.LongName != "" {
		name = rec.LongName
	}
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Train:"), valueStyle.Render(name)))
	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("Address:"), rec.Address))

	if !rec.Bonded {
		s.WriteString("\n")
		s.WriteString(headerStyle.Render("Not bonded. Bond to read the full record."))
		s.WriteString("\n\n")
		s.WriteString(m.renderActionButton("[ Bond ]", buttonStyle, focusedButtonStyle))
		return s.String()
	}

	s.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("DCC code:"), valueStyle.Render(strconv.Itoa(rec.DCCCode))))
	s.WriteString(fmt.Sprintf("%s %s  %s %s\n",
		labelStyle.Render("Speed:"), valueStyle.Render(strconv.Itoa(rec.Speed)),
		labelStyle.Render("Accel:"), valueStyle.Render(strconv.Itoa(rec.Acceleration))))
	s.WriteString(fmt.Sprintf("%s %s\n\n", labelStyle.Render("Direction:"), valueStyle.Render(string(rec.Direction))))

	connected := highlighted.connected || (m.snap.Selected != nil && m.svc.ConnectedAddress() == rec.Address)
	if !connected {
		s.WriteString(m.renderActionButton("[ Connect ]", buttonStyle, focusedButtonStyle))
		return s.String()
	}

	s.WriteString(labelStyle.Render("Set speed: "))
	if m.focusedField == focusSpeedInput {
		s.WriteString(m.speedInput.View())
	} else {
		val := m.speedInput.Value()
		if val == "" {
			val = m.speedInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}
	s.WriteString("\n")
	s.WriteString(headerStyle.Render("left/right=direction space=stop +/-=nudge"))
	s.WriteString("\n\n")
	s.WriteString(m.renderActionButton("[ Apply Speed ]", buttonStyle, focusedButtonStyle))

	return s.String()
}

func (m controlModel) renderActionButton(text string, buttonStyle, focusedButtonStyle lipgloss.Style) string {
	if m.focusedField == focusButton {
		return focusedButtonStyle.Render(text)
	}
	return buttonStyle.Render(text)
}

func (m controlModel) renderEventLog(labelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := 8
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}

	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("15:04:05.000")
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(timestamp),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Directory Integration
//////////////////////////////////////////////////////////////

func (m *controlModel) applySnapshot(snap roster.Snapshot) {
	prevBonded := make(map[string]bool, len(m.snap.Bonded))
	for _, rec := range m.snap.Bonded {
		prevBonded[rec.Address] = true
	}
	m.snap = snap

	connected := m.svc.ConnectedAddress()
	m.trains = make([]trainItem, 0, len(snap.Bonded)+len(snap.Unbonded))
	for _, rec := range snap.Bonded {
		m.trains = append(m.trains, trainItem{rec: rec, connected: rec.Address == connected})
	}
	for _, rec := range snap.Unbonded {
		m.trains = append(m.trains, trainItem{rec: rec})
	}
	m.updateTrainList()

	for _, rec := range snap.Bonded {
		if !prevBonded[rec.Address] {
			m.addLogEntry(fmt.Sprintf("Bonded: %s (DCC %d)", rec.ShortName, rec.DCCCode), false)
		}
	}
}

func (m *controlModel) updateTrainList() {
	items := make([]list.Item, len(m.trains))
	for i, t := range m.trains {
		items[i] = t
	}
	m.trainList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	listHeight := m.height / 2
	if listHeight < 6 {
		listHeight = 6
	}
	m.trainList.SetSize(32, listHeight)
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m *controlModel) toggleScanning() {
	if m.scanning {
		m.svc.StopScanning()
		m.addLogEntry("Scanning stopped", false)
	} else {
		m.svc.StartScanning()
		m.addLogEntry("Scanning started", false)
	}
	m.scanning = !m.scanning
}

func (m *controlModel) applySpeedInput() {
	val := m.speedInput.Value()
	if val == "" {
		val = m.speedInput.Placeholder
	}
	speed, err := strconv.Atoi(val)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid speed value: %s", val), true)
		return
	}
	if m.svc.ConnectedAddress() == "" {
		m.addLogEntry("No connected train to drive", true)
		return
	}
	m.svc.SetSpeed(speed)
	m.addLogEntry(fmt.Sprintf("Speed -> %d", trenes.ClampSpeed(speed)), false)
}

func (m *controlModel) nudgeSpeed(delta int) {
	addr := m.svc.ConnectedAddress()
	if addr == "" {
		m.addLogEntry("No connected train to drive", true)
		return
	}
	rec, ok := m.svc.Roster().Get(addr)
	if !ok {
		return
	}
	m.svc.SetSpeed(trenes.ClampSpeed(rec.Speed + delta))
}

func (m *controlModel) setDirection(d trenes.Direction) {
	if m.svc.ConnectedAddress() == "" {
		m.addLogEntry("No connected train to drive", true)
		return
	}
	m.svc.SetDirection(d)
	m.addLogEntry(fmt.Sprintf("Direction -> %s", d), false)
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m *controlModel) highlightedTrain() *trainItem {
	if len(m.trains) == 0 {
		return nil
	}

	idx := m.trainList.Index()
	if idx < 0 || idx >= len(m.trains) {
		return nil
	}

	return &m.trains[idx]
}

func (m *controlModel) connectedRecord() *trenes.Record {
	addr := m.svc.ConnectedAddress()
	if addr == "" {
		return nil
	}
	rec, ok := m.svc.Roster().Get(addr)
	if !ok {
		return nil
	}
	return &rec
}
