package doubleit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	nsSOAP     = "http://schemas.xmlsoap.org/soap/envelope/"
	nsDoubleIt = "http://www.example.org/schema/DoubleIt"
	nsWSSE     = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	nsWSU      = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"

	passwordTextType = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordText"
	nonceEncoding    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary"
)

// Fault is a SOAP 1.1 fault returned by the service.
type Fault struct {
	Code   string
	String string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("soap fault %s: %s", f.Code, f.String)
}

func newEnvelope() (*etree.Document, *etree.Element, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	envelope := doc.CreateElement("soap:Envelope")
	envelope.CreateAttr("xmlns:soap", nsSOAP)

	header := envelope.CreateElement("soap:Header")
	body := envelope.CreateElement("soap:Body")

	return doc, header, body
}

func marshalRequest(number int, token UsernameToken) ([]byte, error) {
	doc, header, body := newEnvelope()

	token.appendTo(header)

	request := body.CreateElement("ns2:DoubleIt")
	request.CreateAttr("xmlns:ns2", nsDoubleIt)
	request.CreateElement("numberToDouble").SetText(strconv.Itoa(number))

	return doc.WriteToBytes()
}

func marshalResponse(number int) ([]byte, error) {
	doc, _, body := newEnvelope()

	response := body.CreateElement("ns2:DoubleItResponse")
	response.CreateAttr("xmlns:ns2", nsDoubleIt)
	response.CreateElement("doubledNumber").SetText(strconv.Itoa(number))

	return doc.WriteToBytes()
}

func marshalFault(fault *Fault) ([]byte, error) {
	doc, _, body := newEnvelope()

	f := body.CreateElement("soap:Fault")
	f.CreateElement("faultcode").SetText(fault.Code)
	f.CreateElement("faultstring").SetText(fault.String)

	return doc.WriteToBytes()
}

func readBody(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}

	body := doc.FindElement("//*[local-name()='Envelope']/*[local-name()='Body']")
	if body == nil {
		return nil, fmt.Errorf("envelope has no Body")
	}

	return body, nil
}

func childInt(parent *etree.Element, name string) (int, error) {
	el := parent.FindElement("./*[local-name()='" + name + "']")
	if el == nil {
		return 0, fmt.Errorf("missing %s", name)
	}

	n, err := strconv.Atoi(strings.TrimSpace(el.Text()))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return n, nil
}

func unmarshalRequest(data []byte) (int, *UsernameToken, error) {
	body, err := readBody(data)
	if err != nil {
		return 0, nil, err
	}

	request := body.FindElement("./*[local-name()='DoubleIt']")
	if request == nil {
		return 0, nil, fmt.Errorf("body has no DoubleIt request")
	}

	number, err := childInt(request, "numberToDouble")
	if err != nil {
		return 0, nil, err
	}

	doc := body.Parent()
	token := parseUsernameToken(doc)

	return number, token, nil
}

// unmarshalResponse returns the doubled number, or a *Fault.
func unmarshalResponse(data []byte) (int, error) {
	body, err := readBody(data)
	if err != nil {
		return 0, err
	}

	if f := body.FindElement("./*[local-name()='Fault']"); f != nil {
		fault := &Fault{}
		if code := f.FindElement("./*[local-name()='faultcode']"); code != nil {
			fault.Code = code.Text()
		}
		if msg := f.FindElement("./*[local-name()='faultstring']"); msg != nil {
			fault.String = msg.Text()
		}
		return 0, fault
	}

	response := body.FindElement("./*[local-name()='DoubleItResponse']")
	if response == nil {
		return 0, fmt.Errorf("body has no DoubleItResponse")
	}

	return childInt(response, "doubledNumber")
}
