package main

// rtmidi backs midi input ports.
import _ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
