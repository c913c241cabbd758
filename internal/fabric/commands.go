package fabric

import (
	"github.com/nymph-fabric/fabric-bench/internal/ioctl"
)

// IOCMagic is the ioctl type namespace of the pcie_nymph driver.
const IOCMagic = 'N'

// Control channel commands.
var (
	CmdSubmitDMA = ioctl.IOWR(IOCMagic, 1, DescriptorSize)
	CmdGetStatus = ioctl.IOR(IOCMagic, 2, StatusSize)
	CmdSetupRing = ioctl.IOW(IOCMagic, 3, RingSize)
	CmdGetRing   = ioctl.IOR(IOCMagic, 4, RingSize)
	CmdReset     = ioctl.IO(IOCMagic, 5)
)

// CommandName returns the driver's name for a known command, or an empty string.
func CommandName(cmd uint32) string {
	switch cmd {
	case CmdSubmitDMA:
		return "SUBMIT_DMA"
	case CmdGetStatus:
		return "GET_STATUS"
	case CmdSetupRing:
		return "SETUP_RING"
	case CmdGetRing:
		return "GET_RING"
	case CmdReset:
		return "RESET"
	}

	return ""
}
