// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"strings"

	"beats/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var highlightStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#25A065")).
	Bold(true)

var pickerKeys = struct {
	Up, Down, Choose, Quit key.Binding
}{
	Up:     key.NewBinding(key.WithKeys("up", "k")),
	Down:   key.NewBinding(key.WithKeys("down", "j")),
	Choose: key.NewBinding(key.WithKeys("enter")),
	Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c")),
}

// DevicePickerModel lets the user choose an input device before capture
// starts. Only devices with input channels are listed.
type DevicePickerModel struct {
	devices       []audio.Device
	selectedIndex int
	chosen        int
	viewport      viewport.Model
	ready         bool
}

// NewDevicePickerModel creates a picker over the input devices in devices,
// preselecting the system default.
func NewDevicePickerModel(devices []audio.Device) DevicePickerModel {
	m := DevicePickerModel{chosen: -1}
	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		if d.IsDefaultInput {
			m.selectedIndex = len(m.devices)
		}
		m.devices = append(m.devices, d)
	}
	return m
}

// Init initializes the Bubble Tea model
func (m DevicePickerModel) Init() tea.Cmd {
	return nil
}

func (m DevicePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.viewport.SetContent(m.renderDevices())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, pickerKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, pickerKeys.Up):
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
		case key.Matches(msg, pickerKeys.Down):
			if m.selectedIndex < len(m.devices)-1 {
				m.selectedIndex++
			}
		case key.Matches(msg, pickerKeys.Choose):
			if len(m.devices) > 0 {
				m.chosen = m.devices[m.selectedIndex].ID
				return m, tea.Quit
			}
		}
		if m.ready {
			m.viewport.SetContent(m.renderDevices())
		}
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// Chosen returns the selected device ID, or -1 if the user quit.
func (m DevicePickerModel) Chosen() int { return m.chosen }

// View renders the UI
func (m DevicePickerModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	title := titleStyle.Render("Choose an input device")
	help := infoStyle.Render("↑/↓: Navigate • Enter: Select • q: Cancel")
	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

func (m DevicePickerModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No input devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		deviceInfo := fmt.Sprintf("[%d] %s (%d ch, %.0f Hz)\n",
			device.ID, device.Name, device.MaxInputChannels, device.DefaultSampleRate)
		if i == m.selectedIndex {
			deviceInfo = highlightStyle.Render("▶ " + deviceInfo)
		} else {
			deviceInfo = "  " + deviceInfo
		}
		sb.WriteString(deviceInfo)
	}
	return sb.String()
}

// PickDevice runs the picker and returns the chosen device ID. ok is false
// when the user cancelled.
func PickDevice(devices []audio.Device) (id int, ok bool, err error) {
	final, err := tea.NewProgram(NewDevicePickerModel(devices), tea.WithAltScreen()).Run()
	if err != nil {
		return -1, false, err
	}
	chosen := final.(DevicePickerModel).Chosen()
	return chosen, chosen >= 0, nil
}
