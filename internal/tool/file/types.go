package file

// -- Read File --

type ReadFileRequest struct {
	Path string `json:"path" mapstructure:"path"`
}

func (r *ReadFileRequest) Validate() error {
	if r.Path == "" {
		return ErrPathRequired
	}
	return nil
}

func (r *ReadFileRequest) String() string {
	return "Reading " + r.Path
}
