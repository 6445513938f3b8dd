package cmd

import (
	"fmt"
	"io"
)

const banner = `
      _                                       _ 
  ___| |__   ___  _ __   __ _ _   _  __ _ _ __ __| |
 / __| '_ \ / _ \| '_ \ / _` + "`" + ` | | | |/ _` + "`" + ` | '__/ _` + "`" + ` |
 \__ \ | | | (_) | |_) | (_| | |_| | (_| | | | (_| |
 |___/_| |_|\___/| .__/ \__, |\__,_|\__,_|_|  \__,_|
                 |_|    |___/                       
`

func printBanner(w io.Writer) {
	fmt.Fprintf(w, "\x1b[31m%s\x1b[0m", banner)
	fmt.Fprintf(w, "\x1b[32m  Meat & Eat security service - Version %s\x1b[0m\n\n", Version)
}
