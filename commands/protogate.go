package commands

type ProtogateCommand struct {
	Debug bool `long:"debug" description:"Show debug logs in output"`

	Serve  ServeCommand  `command:"serve" description:"Run the DoubleIt service behind its server protocol policy"`
	Call   CallCommand   `command:"call" description:"Invoke the DoubleIt service under the client protocol policy"`
	Probe  ProbeCommand  `command:"probe" description:"Probe endpoints for the protocol versions they accept"`
	Report ReportCommand `command:"report" description:"Show endpoints accepting non-approved protocol versions"`
}

var Protogate ProtogateCommand
