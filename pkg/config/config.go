// Package config loads the flight configuration file.
//
// The file is sectioned key/value data, INI by default or YAML when the
// file name ends in .yaml or .yml:
//
//	[mission]
//	id = NSX
//	subid = 1
//	...
//
// Every key of the required sections must be present. The status, influx,
// mirror and log sections are optional.
package config

import (
	"time"
)

type Config struct {
	Mission Mission
	GPIO    GPIO
	GPS     GPS
	LoRa    LoRa
	ADC     ADC
	Temp    Temp
	Baro    Baro
	Paths   Paths
	SSDV    SSDV

	Status *Status
	Influx *Influx
	Mirror *Mirror
	Log    Log
}

type Mission struct {
	ID           string
	SubID        string
	Message      string
	Separator    string
	PacketRepeat int
	PacketDelay  time.Duration
}

// GPIO holds BCM pin numbers.
type GPIO struct {
	BattEnablePin int
	LEDPin        int
	PowerPin      int
}

type GPS struct {
	SerialPort string
	Speed      int
}

type LoRa struct {
	CS        int
	IntPin    int
	Frequency float64
	LowPower  int
	HighPower int
}

type ADC struct {
	CS          int
	VBatt       int
	VDivider    float64
	VMultiplier float64
}

type Temp struct {
	InternalAddr string
	ExternalAddr string
}

type Baro struct {
	I2CBus int
	Addr   uint16
}

type Paths struct {
	MainDir   string
	ImagesDir string
	LogPrefix string
}

type SSDV struct {
	Size string
	Name string
}

type Status struct {
	Listen string
}

type Influx struct {
	Host   string
	Token  string
	Org    string
	Bucket string
}

type Mirror struct {
	Destinations []string
}

type Log struct {
	Level string
}
