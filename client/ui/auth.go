package ui

import (
	"errors"
	"strings"

	"github.com/rivo/tview"

	"enlechat/client/api"
	"enlechat/client/identity"
	"enlechat/models"
)

// centered wraps p in a fixed-size box in the middle of the screen.
func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().
			AddItem(nil, 0, 1, false).
			AddItem(p, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)
}

func (a *App) newStatusText() *tview.TextView {
	statusText := tview.NewTextView()
	statusText.SetBackgroundColor(a.palette.Bg)
	statusText.SetTextAlign(tview.AlignCenter)
	statusText.SetDynamicColors(true)
	return statusText
}

func (a *App) showAuthDialog() {
	form := tview.NewForm()
	a.palette.styleForm(form, " Enle Login ")

	statusText := a.newStatusText()

	emailField := tview.NewInputField().SetLabel("Email: ").SetFieldWidth(30)
	passwordField := tview.NewInputField().SetLabel("Password: ").SetFieldWidth(30).SetMaskCharacter('*')

	form.AddFormItem(emailField)
	form.AddFormItem(passwordField)

	form.AddButton("Login", func() {
		email := strings.TrimSpace(emailField.GetText())
		password := passwordField.GetText()
		if email == "" || password == "" {
			statusText.SetText("[red]Please enter email and password[-]")
			return
		}
		a.doLogin(email, password, statusText)
	})

	form.AddButton("Register", func() {
		a.pages.RemovePage("auth")
		a.showRegisterDialog()
	})

	form.AddButton("Quit", func() {
		a.quit()
	})

	formFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(statusText, 1, 0, false)

	a.pages.AddPage("auth", centered(formFlex, 54, 12), true, true)
	a.app.SetFocus(form)
}

func (a *App) doLogin(email, password string, statusText *tview.TextView) {
	statusText.SetText("Authenticating...")

	go func() {
		ctx, cancel := a.ctx()
		defer cancel()

		_, err := a.ident.Login(ctx, models.LoginRequest{Email: email, Password: password})
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				statusText.SetText("[red]" + tview.Escape(api.Message(err, "Login failed")) + "[-]")
				return
			}
			a.enterMainScreen()
		})
	}()
}

func (a *App) showRegisterDialog() {
	form := tview.NewForm()
	a.palette.styleForm(form, " Create an Enle account ")

	statusText := a.newStatusText()

	usernameField := tview.NewInputField().SetLabel("Username: ").SetFieldWidth(30)
	emailField := tview.NewInputField().SetLabel("Email: ").SetFieldWidth(30)
	passwordField := tview.NewInputField().SetLabel("Password: ").SetFieldWidth(30).SetMaskCharacter('*')
	confirmField := tview.NewInputField().SetLabel("Confirm: ").SetFieldWidth(30).SetMaskCharacter('*')
	otpField := tview.NewInputField().SetLabel("OTP: ").SetFieldWidth(8).SetAcceptanceFunc(tview.InputFieldInteger)

	form.AddFormItem(usernameField)
	form.AddFormItem(emailField)
	form.AddFormItem(passwordField)
	form.AddFormItem(confirmField)
	form.AddFormItem(otpField)

	readForm := func() identity.Form {
		return identity.Form{
			Username: usernameField.GetText(),
			Email:    emailField.GetText(),
			Password: passwordField.GetText(),
			Confirm:  confirmField.GetText(),
			OTP:      otpField.GetText(),
		}
	}

	form.AddButton("Send OTP", func() {
		f := readForm()
		if !identity.ValidEmail(strings.TrimSpace(f.Email)) {
			statusText.SetText("[red]" + identity.ErrInvalidEmail.Error() + "[-]")
			return
		}
		statusText.SetText("Sending OTP...")
		go func() {
			ctx, cancel := a.ctx()
			defer cancel()
			err := a.reg.SendOTP(ctx, f.Email, f.Username)
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					statusText.SetText("[red]" + tview.Escape(otpError(err)) + "[-]")
					return
				}
				statusText.SetText("[green]OTP sent to your email[-]")
				a.app.SetFocus(otpField)
			})
		}()
	})

	form.AddButton("Register", func() {
		f := readForm()
		if strings.TrimSpace(f.Username) == "" || f.Password == "" {
			statusText.SetText("[red]Please enter all fields[-]")
			return
		}
		if err := a.reg.Validate(f); err != nil {
			statusText.SetText("[red]" + tview.Escape(err.Error()) + "[-]")
			return
		}
		statusText.SetText("Registering...")
		go func() {
			ctx, cancel := a.ctx()
			defer cancel()
			_, err := a.ident.Register(ctx, f.Request())
			a.app.QueueUpdateDraw(func() {
				if err != nil {
					statusText.SetText("[red]" + tview.Escape(api.Message(err, "Registration failed")) + "[-]")
					return
				}
				a.reg = identity.NewRegistration(a.api)
				a.enterMainScreen()
			})
		}()
	})

	form.AddButton("Back", func() {
		a.pages.RemovePage("register")
		a.showAuthDialog()
	})

	formFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(statusText, 1, 0, false)

	a.pages.AddPage("register", centered(formFlex, 60, 18), true, true)
	a.app.SetFocus(form)
}

// otpError keeps the backend text when there is one.
func otpError(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
