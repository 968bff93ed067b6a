package plugin

// Hand-assembled guest binaries for host tests.

func uleb(n int) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func name(s string) []byte {
	return append(uleb(len(s)), s...)
}

func section(id byte, content ...[]byte) []byte {
	var body []byte
	for _, c := range content {
		body = append(body, c...)
	}
	out := append([]byte{id}, uleb(len(body))...)
	return append(out, body...)
}

func body(code ...byte) []byte {
	return append(uleb(len(code)), code...)
}

func importFunc(fn string, typ byte) []byte {
	out := append(name(DefaultModuleName), name(fn)...)
	return append(out, 0x00, typ)
}

func exportFunc(n string, idx byte) []byte {
	return append(name(n), 0x00, idx)
}

func module(sections ...[]byte) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

// bufferGuest exports create(size), addref(r), release(r), size(r),
// live() and crash().
func bufferGuest() []byte {
	return module(
		section(1, []byte{0x03,
			0x60, 0x01, 0x7f, 0x01, 0x7f, // t0 (i32) -> i32
			0x60, 0x00, 0x01, 0x7f, // t1 () -> i32
			0x60, 0x00, 0x00, // t2 () -> ()
		}),
		section(2, []byte{0x05},
			importFunc("buffer_create", 0),    // 0
			importFunc("add_ref_resource", 0), // 1
			importFunc("release_resource", 0), // 2
			importFunc("buffer_size", 0),      // 3
			importFunc("live_objects", 1),     // 4
		),
		section(3, []byte{0x06, 0x00, 0x00, 0x00, 0x00, 0x01, 0x02}),
		section(7, []byte{0x06},
			exportFunc("create", 5),
			exportFunc("addref", 6),
			exportFunc("release", 7),
			exportFunc("size", 8),
			exportFunc("live", 9),
			exportFunc("crash", 10),
		),
		section(10, []byte{0x06},
			body(0x00, 0x20, 0x00, 0x10, 0x00, 0x0b),
			body(0x00, 0x20, 0x00, 0x10, 0x01, 0x0b),
			body(0x00, 0x20, 0x00, 0x10, 0x02, 0x0b),
			body(0x00, 0x20, 0x00, 0x10, 0x03, 0x0b),
			body(0x00, 0x10, 0x04, 0x0b),
			body(0x00, 0x00, 0x0b),
		),
	)
}

// stringGuest exports make() for the string "hello" at offset 0, bad()
// for a string past the end of memory, and length(v).
func stringGuest() []byte {
	return module(
		section(1, []byte{0x03,
			0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // t0 (i32, i32) -> i32
			0x60, 0x00, 0x01, 0x7f, // t1 () -> i32
			0x60, 0x01, 0x7f, 0x01, 0x7f, // t2 (i32) -> i32
		}),
		section(2, []byte{0x02},
			importFunc("var_from_utf8", 0), // 0
			importFunc("var_length", 2),    // 1
		),
		section(3, []byte{0x03, 0x01, 0x01, 0x02}),
		section(5, []byte{0x01, 0x00, 0x01}),
		section(7, []byte{0x04},
			exportFunc("make", 2),
			exportFunc("bad", 3),
			exportFunc("length", 4),
			append(name("memory"), 0x02, 0x00),
		),
		section(10, []byte{0x03},
			body(0x00, 0x41, 0x00, 0x41, 0x05, 0x10, 0x00, 0x0b),
			body(0x00, 0x41, 0x80, 0x80, 0x04, 0x41, 0x05, 0x10, 0x00, 0x0b),
			body(0x00, 0x20, 0x00, 0x10, 0x01, 0x0b),
		),
		section(11, []byte{0x01, 0x00, 0x41, 0x00, 0x0b}, name("hello")),
	)
}

// unlinkedGuest imports a function the host does not provide.
func unlinkedGuest() []byte {
	return module(
		section(1, []byte{0x01, 0x60, 0x00, 0x00}),
		section(2, []byte{0x01}, importFunc("no_such_function", 0)),
	)
}
