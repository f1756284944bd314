package model

import "encoding/gob"

func init() {
	gob.Register(&SGDHandler{})
	gob.Register(&PegasosHandler{})
}
