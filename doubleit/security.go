package doubleit

import (
	"encoding/base64"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
)

// PasswordCallback supplies the password for a username when a request is
// built, so clients need not hold passwords in configuration.
type PasswordCallback func(username string) (string, error)

// StaticPassword always answers with password.
func StaticPassword(password string) PasswordCallback {
	return func(string) (string, error) {
		return password, nil
	}
}

// UsernameToken is a WS-Security UsernameToken with a plain-text password.
type UsernameToken struct {
	ID       string
	Username string
	Password string
	Nonce    string
	Created  time.Time
}

func newUsernameToken(username, password string) UsernameToken {
	nonce := uuid.New()

	return UsernameToken{
		ID:       "UsernameToken-" + uuid.NewString(),
		Username: username,
		Password: password,
		Nonce:    base64.StdEncoding.EncodeToString(nonce[:]),
		Created:  time.Now().UTC(),
	}
}

func (t UsernameToken) appendTo(header *etree.Element) {
	security := header.CreateElement("wsse:Security")
	security.CreateAttr("xmlns:wsse", nsWSSE)
	security.CreateAttr("xmlns:wsu", nsWSU)
	security.CreateAttr("soap:mustUnderstand", "1")

	token := security.CreateElement("wsse:UsernameToken")
	token.CreateAttr("wsu:Id", t.ID)
	token.CreateElement("wsse:Username").SetText(t.Username)

	password := token.CreateElement("wsse:Password")
	password.CreateAttr("Type", passwordTextType)
	password.SetText(t.Password)

	nonce := token.CreateElement("wsse:Nonce")
	nonce.CreateAttr("EncodingType", nonceEncoding)
	nonce.SetText(t.Nonce)

	token.CreateElement("wsu:Created").SetText(t.Created.Format(time.RFC3339))
}

func parseUsernameToken(envelope *etree.Element) *UsernameToken {
	if envelope == nil {
		return nil
	}

	el := envelope.FindElement(".//*[local-name()='Security']/*[local-name()='UsernameToken']")
	if el == nil {
		return nil
	}

	token := &UsernameToken{ID: el.SelectAttrValue("wsu:Id", "")}
	if username := el.FindElement("./*[local-name()='Username']"); username != nil {
		token.Username = username.Text()
	}
	if password := el.FindElement("./*[local-name()='Password']"); password != nil {
		token.Password = password.Text()
	}
	if nonce := el.FindElement("./*[local-name()='Nonce']"); nonce != nil {
		token.Nonce = nonce.Text()
	}
	if created := el.FindElement("./*[local-name()='Created']"); created != nil {
		token.Created, _ = time.Parse(time.RFC3339, created.Text())
	}

	return token
}
