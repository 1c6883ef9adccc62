package wizards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vvka-141/sfdash/internal/config"
	"github.com/vvka-141/sfdash/internal/db"
	"github.com/vvka-141/sfdash/internal/logging"
	"github.com/vvka-141/sfdash/internal/tui"
	"github.com/vvka-141/sfdash/pkg/sfdash"
)

// testTimeout leaves room for a browser login.
const testTimeout = 2 * time.Minute

// ConnectionTester tests warehouse connectivity.
type ConnectionTester interface {
	TestConnection(ctx context.Context, cfg config.ConnectionConfig) (info string, err error)
}

type snowflakeTester struct{}

func (snowflakeTester) TestConnection(ctx context.Context, cfg config.ConnectionConfig) (string, error) {
	resolved, _, err := config.ResolveConnection(nil, config.LoadFromEnvironment(), &config.ProjectConfig{Connection: cfg})
	if err != nil {
		return "", err
	}

	logger := logging.NewNullLogger()
	resolver, err := db.NewCredentialResolver(resolved, logger)
	if err != nil {
		return "", err
	}
	cred, err := resolver.Resolve(ctx)
	if err != nil {
		return "", err
	}
	if cfg.TokenPath != "" && cred.Mode() != sfdash.AuthModeDelegatedToken {
		return fmt.Sprintf("Token file %s not found here; configuration ready for the platform", resolver.TokenPath()), nil
	}

	connector, err := db.NewConnector(resolved, cred, logger)
	if err != nil {
		return "", err
	}
	conn, err := connector.Connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	records, err := conn.Query(ctx, "SELECT CURRENT_VERSION() AS VERSION, CURRENT_WAREHOUSE() AS WAREHOUSE")
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", errors.New("no rows returned")
	}
	return fmt.Sprintf("Snowflake %v (%s, warehouse %v)", records[0]["VERSION"], cred.Mode(), records[0]["WAREHOUSE"]), nil
}

// WizardOption configures a ConnectionWizard.
type WizardOption func(*ConnectionWizard)

// WithTester injects a ConnectionTester (for testing/mocking).
func WithTester(t ConnectionTester) WizardOption {
	return func(w *ConnectionWizard) {
		w.tester = t
	}
}

// Auth method IDs.
const (
	authBrowser = "browser"
	authToken   = "token"
	authAzure   = "azure"
)

// ConnectionResult holds the result of the connection wizard.
type ConnectionResult struct {
	Cancelled bool
	Config    config.ConnectionConfig
	Tested    bool
}

// AuthOption represents an authentication method.
type AuthOption struct {
	ID          string
	Name        string
	Description string
}

var authOptions = []AuthOption{
	{ID: authBrowser, Name: "Browser SSO (local development)", Description: "Opens your browser to sign in; the session is reused until it expires"},
	{ID: authToken, Name: "Platform token file", Description: "Reads the OAuth token the container platform mounts at " + sfdash.DefaultTokenPath},
	{ID: authAzure, Name: "Microsoft Entra ID", Description: "External OAuth token from az login, managed identity, or a service principal"},
}

// Input field indexes shared by every form.
const (
	fieldAccount = iota
	fieldUser
	fieldWarehouse
	fieldDatabase
	fieldSchema
	fieldRole
	commonFieldCount
)

// ConnectionWizard guides users through setting up a Snowflake connection.
type ConnectionWizard struct {
	step wizardStep

	authIdx    int
	authMethod *AuthOption

	inputs        []textinput.Model
	focusIndex    int
	validationErr string

	spinner  spinner.Model
	testing  bool
	testDone bool
	testOK   bool
	testErr  error
	testInfo string

	result ConnectionResult

	width  int
	height int

	styles wizardStyles
	keys   wizardKeys

	tester ConnectionTester
}

type wizardStep int

const (
	stepSelectAuth wizardStep = iota
	stepInputDetails
	stepTestConnection
	stepDone
)

type wizardStyles struct {
	Title       lipgloss.Style
	Subtitle    lipgloss.Style
	Selected    lipgloss.Style
	Unselected  lipgloss.Style
	Description lipgloss.Style
	Help        lipgloss.Style
	Success     lipgloss.Style
	Error       lipgloss.Style
	Warning     lipgloss.Style
	Panel       lipgloss.Style
	Box         lipgloss.Style
	Label       lipgloss.Style
	FocusedBox  lipgloss.Style
}

type wizardKeys struct {
	Up       key.Binding
	Down     key.Binding
	Select   key.Binding
	Back     key.Binding
	Quit     key.Binding
	Tab      key.Binding
	ShiftTab key.Binding
	helpText string
	formHelp string
}

func defaultWizardStyles() wizardStyles {
	return wizardStyles{
		Title:       tui.TitleStyle,
		Subtitle:    tui.SubtitleStyle,
		Selected:    tui.SelectedStyle,
		Unselected:  tui.UnselectedStyle,
		Description: tui.DescriptionStyle,
		Help:        tui.HelpStyle,
		Success:     tui.SuccessStyle,
		Error:       tui.ErrorStyle,
		Warning:     tui.WarningStyle,
		Panel:       tui.BoxStyle,
		Box:         tui.InputStyle.Border(lipgloss.RoundedBorder()).BorderForeground(tui.ColorMuted),
		Label:       tui.InputLabelStyle,
		FocusedBox:  tui.FocusedInputStyle.Border(lipgloss.RoundedBorder()),
	}
}

func defaultWizardKeys() wizardKeys {
	km := tui.DefaultKeyMap()
	return wizardKeys{
		Up:       km.Up,
		Down:     km.Down,
		Select:   km.Select,
		Back:     km.Back,
		Quit:     km.Quit,
		Tab:      km.Tab,
		ShiftTab: km.ShiftTab,
		helpText: km.HelpText(),
		formHelp: km.InputHelpText(),
	}
}

// NewConnectionWizard creates a new connection wizard.
func NewConnectionWizard(opts ...WizardOption) ConnectionWizard {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = tui.SpinnerStyle

	w := ConnectionWizard{
		step:    stepSelectAuth,
		spinner: s,
		width:   80,
		height:  24,
		styles:  defaultWizardStyles(),
		keys:    defaultWizardKeys(),
		tester:  snowflakeTester{},
	}
	for _, opt := range opts {
		opt(&w)
	}
	return w
}

// Init implements tea.Model.
func (w ConnectionWizard) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (w ConnectionWizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height
		return w, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			w.result.Cancelled = true
			return w, tea.Quit
		}

		switch w.step {
		case stepSelectAuth:
			return w.updateAuthSelection(msg)
		case stepInputDetails:
			return w.updateInputForm(msg)
		case stepTestConnection:
			return w.updateTestConnection(msg)
		}

	case testResultMsg:
		w.testing = false
		w.testDone = true
		w.testOK = msg.success
		w.testErr = msg.err
		w.testInfo = msg.info
		return w, nil

	case spinner.TickMsg:
		if w.testing {
			var cmd tea.Cmd
			w.spinner, cmd = w.spinner.Update(msg)
			return w, cmd
		}

	default:
		// Forward non-key messages (focus, blink cursor) to the active input.
		if w.step == stepInputDetails && w.focusIndex >= 0 && w.focusIndex < len(w.inputs) {
			var cmd tea.Cmd
			w.inputs[w.focusIndex], cmd = w.inputs[w.focusIndex].Update(msg)
			return w, cmd
		}
	}

	return w, nil
}

func (w ConnectionWizard) updateAuthSelection(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, w.keys.Up):
		if w.authIdx > 0 {
			w.authIdx--
		}
	case key.Matches(msg, w.keys.Down):
		if w.authIdx < len(authOptions)-1 {
			w.authIdx++
		}
	case key.Matches(msg, w.keys.Select):
		w.authMethod = &authOptions[w.authIdx]
		w.step = stepInputDetails
		return w, w.initInputs()
	case key.Matches(msg, w.keys.Back), key.Matches(msg, w.keys.Quit):
		w.result.Cancelled = true
		return w, tea.Quit
	}
	return w, nil
}

func newInput(placeholder string, limit, width int) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Width = width
	return in
}

func (w *ConnectionWizard) initInputs() tea.Cmd {
	w.focusIndex = 0
	w.validationErr = ""

	account := newInput("orgname-accountname", 128, 40)
	user := newInput("jane.doe@example.com", 128, 40)
	warehouse := newInput(sfdash.PlaceholderWarehouse, 128, 40)
	warehouse.SetValue(sfdash.PlaceholderWarehouse)
	database := newInput(sfdash.PlaceholderDatabase, 128, 40)
	database.SetValue(sfdash.PlaceholderDatabase)
	schema := newInput(sfdash.PlaceholderSchema, 128, 40)
	schema.SetValue(sfdash.PlaceholderSchema)
	role := newInput("optional", 128, 40)

	w.inputs = []textinput.Model{account, user, warehouse, database, schema, role}

	switch w.authMethod.ID {
	case authToken:
		tokenPath := newInput(sfdash.DefaultTokenPath, 256, 50)
		tokenPath.SetValue(sfdash.DefaultTokenPath)
		w.inputs = append(w.inputs, tokenPath)
	case authAzure:
		w.inputs = append(w.inputs,
			newInput("api://<app-id>/.default", 256, 50),
			newInput("tenant id (optional)", 64, 40),
			newInput("client id (optional)", 64, 40),
		)
	}

	return w.inputs[0].Focus()
}

func (w ConnectionWizard) updateInputForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, w.keys.Tab), msg.String() == "down":
		if w.focusIndex < len(w.inputs)-1 {
			w.inputs[w.focusIndex].Blur()
			w.focusIndex++
			return w, w.inputs[w.focusIndex].Focus()
		}
	case key.Matches(msg, w.keys.ShiftTab), msg.String() == "up":
		if w.focusIndex > 0 {
			w.inputs[w.focusIndex].Blur()
			w.focusIndex--
			return w, w.inputs[w.focusIndex].Focus()
		}
	case key.Matches(msg, w.keys.Select):
		// Enter on a non-last field advances.
		if w.focusIndex < len(w.inputs)-1 {
			w.inputs[w.focusIndex].Blur()
			w.focusIndex++
			return w, w.inputs[w.focusIndex].Focus()
		}
		if err := w.validateInputs(); err != nil {
			w.validationErr = err.Error()
			return w, nil
		}
		w.validationErr = ""
		w.buildConfig()
		w.step = stepTestConnection
		w.testing = true
		w.testDone = false
		return w, tea.Batch(w.spinner.Tick, w.testConnection())
	case key.Matches(msg, w.keys.Back):
		w.step = stepSelectAuth
		return w, nil
	default:
		w.validationErr = ""
		var cmd tea.Cmd
		w.inputs[w.focusIndex], cmd = w.inputs[w.focusIndex].Update(msg)
		return w, cmd
	}
	return w, nil
}

func (w *ConnectionWizard) value(i int) string {
	return strings.TrimSpace(w.inputs[i].Value())
}

func (w *ConnectionWizard) validateInputs() error {
	if w.value(fieldAccount) == "" {
		return fmt.Errorf("account identifier is required")
	}
	if strings.Contains(w.value(fieldAccount), "://") {
		return fmt.Errorf("enter the account identifier, not a URL")
	}
	switch w.authMethod.ID {
	case authBrowser:
		if w.value(fieldUser) == "" {
			return fmt.Errorf("user is required for browser login")
		}
	case authToken:
		if w.value(commonFieldCount) == "" {
			return fmt.Errorf("token path is required")
		}
	case authAzure:
		if w.value(commonFieldCount) == "" {
			return fmt.Errorf("OAuth scope is required for Entra ID")
		}
	}
	return nil
}

func (w *ConnectionWizard) buildConfig() {
	cfg := config.ConnectionConfig{
		Account:   w.value(fieldAccount),
		User:      w.value(fieldUser),
		Warehouse: w.value(fieldWarehouse),
		Database:  w.value(fieldDatabase),
		Schema:    w.value(fieldSchema),
		Role:      w.value(fieldRole),
	}

	switch w.authMethod.ID {
	case authToken:
		cfg.TokenPath = w.value(commonFieldCount)
		cfg.WatchToken = true
	case authAzure:
		cfg.OAuthProvider = db.OAuthProviderAzure
		cfg.OAuthScope = w.value(commonFieldCount)
		cfg.AzureTenantID = w.value(commonFieldCount + 1)
		cfg.AzureClientID = w.value(commonFieldCount + 2)
	}

	w.result.Config = cfg
}

type testResultMsg struct {
	success bool
	err     error
	info    string
}

func (w *ConnectionWizard) testConnection() tea.Cmd {
	cfg := w.result.Config
	tester := w.tester
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		info, err := tester.TestConnection(ctx, cfg)
		if err != nil {
			return testResultMsg{success: false, err: err}
		}
		return testResultMsg{success: true, info: info}
	}
}

func (w ConnectionWizard) updateTestConnection(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !w.testDone {
		return w, nil
	}

	switch {
	case key.Matches(msg, w.keys.Select):
		if w.testOK {
			w.result.Tested = true
			w.step = stepDone
			return w, tea.Quit
		}
		w.step = stepInputDetails
		return w, w.initInputs()
	case key.Matches(msg, w.keys.Back):
		w.step = stepInputDetails
		return w, w.initInputs()
	case msg.String() == "s":
		// Save without a successful test.
		w.step = stepDone
		return w, tea.Quit
	}
	return w, nil
}

// View implements tea.Model.
func (w ConnectionWizard) View() string {
	var b strings.Builder

	b.WriteString(w.styles.Title.Render("sfdash - Snowflake Connection Setup"))
	b.WriteString("\n")

	switch w.step {
	case stepSelectAuth:
		b.WriteString(w.viewAuthSelection())
	case stepInputDetails:
		b.WriteString(w.viewDetailsForm())
	case stepTestConnection:
		b.WriteString(w.viewTestConnection())
	}

	return b.String()
}

func (w ConnectionWizard) viewAuthSelection() string {
	var b strings.Builder

	b.WriteString(w.styles.Subtitle.Render("How should sfdash authenticate?"))
	b.WriteString("\n\n")

	for i, a := range authOptions {
		cursor := "  "
		style := w.styles.Unselected
		symbol := tui.SymbolUnselected

		if i == w.authIdx {
			cursor = tui.SymbolArrowRight + " "
			style = w.styles.Selected
			symbol = tui.SymbolSelected
		}

		b.WriteString(cursor)
		b.WriteString(style.Render(symbol + " " + a.Name))
		b.WriteString("\n")
		b.WriteString(w.styles.Description.Render(a.Description))
		b.WriteString("\n")
	}

	b.WriteString(w.styles.Help.Render("\n" + w.keys.helpText))

	return b.String()
}

func (w ConnectionWizard) viewDetailsForm() string {
	var b strings.Builder

	labels := []string{"Account:", "User:", "Warehouse:", "Database:", "Schema:", "Role:"}
	hints := map[int]string{
		fieldAccount: "account identifier, e.g. myorg-myaccount",
	}
	var description []string
	switch w.authMethod.ID {
	case authBrowser:
		description = []string{"A browser window opens when the connection is tested."}
	case authToken:
		labels = append(labels, "Token path:")
		description = []string{"The session follows the token file; rotations are picked up automatically."}
	case authAzure:
		labels = append(labels, "OAuth scope:", "Tenant ID:", "Client ID:")
		description = []string{"Set AZURE_CLIENT_SECRET in the environment to use a service principal."}
	}

	b.WriteString(w.styles.Subtitle.Render(w.authMethod.Name))
	b.WriteString("\n\n")

	for i, input := range w.inputs {
		style := w.styles.Box
		if i == w.focusIndex {
			style = w.styles.FocusedBox
		}
		b.WriteString(w.styles.Label.Render(labels[i]))
		b.WriteString("\n")
		b.WriteString(style.Render(input.View()))
		if hint, ok := hints[i]; ok {
			b.WriteString("\n")
			b.WriteString(w.styles.Description.Render(hint))
		}
		b.WriteString("\n\n")
	}

	for _, desc := range description {
		b.WriteString(w.styles.Description.Render(desc))
		b.WriteString("\n\n")
	}

	if w.validationErr != "" {
		b.WriteString(w.styles.Error.Render("Error: " + w.validationErr))
		b.WriteString("\n\n")
	}

	b.WriteString(w.styles.Help.Render(w.keys.formHelp))

	return b.String()
}

func (w ConnectionWizard) viewTestConnection() string {
	var b strings.Builder

	cfg := w.result.Config

	b.WriteString(w.styles.Subtitle.Render("Testing Connection"))
	b.WriteString("\n\n")

	b.WriteString(w.styles.Panel.Render(targetSummary(cfg)))
	b.WriteString("\n\n")

	if w.testing {
		b.WriteString(w.spinner.View())
		if w.authMethod != nil && w.authMethod.ID == authBrowser {
			b.WriteString(" Waiting for browser login...")
		} else {
			b.WriteString(" Connecting...")
		}
	} else if w.testDone {
		if w.testOK {
			b.WriteString(w.styles.Success.Render(tui.SymbolCheck + " Connected successfully"))
			b.WriteString("\n")
			b.WriteString(w.styles.Description.Render(w.testInfo))
			b.WriteString("\n\n")
			b.WriteString(w.styles.Help.Render("enter continue • esc go back"))
		} else {
			b.WriteString(w.styles.Error.Render(tui.SymbolCross + " Connection failed"))
			b.WriteString("\n")
			errMsg := "unknown error"
			if w.testErr != nil {
				errMsg = w.testErr.Error()
			}
			b.WriteString(w.styles.Description.Render(errMsg))
			b.WriteString("\n\n")
			b.WriteString(w.styles.Warning.Render(saveAnywayNotice))
			b.WriteString("\n")
			b.WriteString(w.styles.Help.Render("enter try again • s save anyway • esc go back"))
		}
	}

	return b.String()
}

const saveAnywayNotice = "Saving anyway writes the settings untested; run 'sfdash query select-one' to check them later."

func targetSummary(cfg config.ConnectionConfig) string {
	lines := []string{
		tui.SymbolBullet + " account   " + cfg.Account,
		tui.SymbolBullet + " warehouse " + cfg.Warehouse,
		tui.SymbolBullet + " database  " + cfg.Database + "." + cfg.Schema,
	}
	if cfg.User != "" {
		lines = append(lines, tui.SymbolBullet+" user      "+cfg.User)
	}
	return strings.Join(lines, "\n")
}

// Result returns the wizard result.
func (w ConnectionWizard) Result() ConnectionResult {
	return w.result
}

// RunConnectionWizard executes the connection wizard and returns the result.
func RunConnectionWizard(opts ...WizardOption) (ConnectionResult, error) {
	wizard := NewConnectionWizard(opts...)
	p := tea.NewProgram(wizard, tea.WithAltScreen())

	model, err := p.Run()
	if err != nil {
		return ConnectionResult{Cancelled: true}, err
	}

	return model.(ConnectionWizard).Result(), nil
}
