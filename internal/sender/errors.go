package sender

import "errors"

// ErrBusy is returned by SendFile while another send is in progress.
var ErrBusy = errors.New("sender: a send is already in progress")
