package kerr

import "syscall"

// Errno maps a Kind to the POSIX errno (a positive syscall.Errno) the NFS host expects,
// following the same category-to-syscall-constant mapping the teacher's
// fs/wrappers error-mapping layer uses for FUSE errno translation.
func (k Kind) Errno() syscall.Errno {
	switch k {
	case Invalid:
		return syscall.EINVAL
	case NotFound:
		return syscall.ENOENT
	case Exists:
		return syscall.EEXIST
	case NotDir:
		return syscall.ENOTDIR
	case NotEmpty:
		return syscall.ENOTEMPTY
	case PermissionDenied:
		return syscall.EPERM
	case NoSpace:
		return syscall.ENOSPC
	case NoMemory:
		return syscall.ENOMEM
	case BufferTooSmall:
		return syscall.ERANGE
	case CrossDevice:
		return syscall.EXDEV
	case NameTooLong:
		return syscall.E2BIG
	case BackendTransient, BackendFatal:
		return syscall.EIO
	default:
		return syscall.EIO
	}
}

// Errno returns the POSIX errno for err's kind, defaulting to EIO for errors
// kvsfs did not classify.
func Errno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	return KindOf(err).Errno()
}
